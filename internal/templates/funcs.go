package templates

import (
	"fmt"
	"html/template"
	"strconv"

	"github.com/joeblew999/cultivar-map/internal/legend"
)

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"num": num,
	"pct": func(v float64) string {
		return fmt.Sprintf("%.0f%%", v*100)
	},
	// safeHTML marks trusted configuration copy as HTML.
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	"swatch": func(i legend.Icon) *legend.Swatch {
		if v, ok := i.(legend.Swatch); ok {
			return &v
		}
		return nil
	},
	"lineSample": func(i legend.Icon) *legend.LineSample {
		if v, ok := i.(legend.LineSample); ok {
			return &v
		}
		return nil
	},
	"gradient": func(i legend.Icon) *legend.Gradient {
		if v, ok := i.(legend.Gradient); ok {
			return &v
		}
		return nil
	},
}

// num formats SVG coordinates without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
