package api

import (
	"io"

	"github.com/danielgtaylor/huma/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackFormat encodes responses as MessagePack for clients sending
// Accept: application/msgpack. Fields without a msgpack tag use their json
// name.
var MsgpackFormat = huma.Format{
	Marshal: func(w io.Writer, v any) error {
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(v)
	},
	Unmarshal: func(data []byte, v any) error {
		return msgpack.Unmarshal(data, v)
	},
}

// WithFormats adds the msgpack format to cfg.
func WithFormats(cfg huma.Config) huma.Config {
	formats := make(map[string]huma.Format, len(cfg.Formats)+2)
	for k, f := range cfg.Formats {
		formats[k] = f
	}
	formats["application/msgpack"] = MsgpackFormat
	formats["msgpack"] = MsgpackFormat
	cfg.Formats = formats
	return cfg
}
