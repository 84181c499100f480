package compiler

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// ClassModule normalizes class attributes: the plain class attribute becomes
// a pre-serialized static string, and :class becomes a binding expression.
func ClassModule() Module {
	return Module{
		StaticKeys:    []string{"staticClass"},
		TransformNode: transformClass,
		GenData:       genClassData,
	}
}

func transformClass(el *ast.Element, opts *Options) {
	warn := opts.Warn
	staticClass, src, ok := getAndRemoveAttr(el, "class", false)
	if ok {
		if warn != nil && ParseText(staticClass, opts.delimiters()) != nil {
			warn(`class="`+staticClass+`": interpolation inside attributes has been removed. `+
				`Use :class or the bind syntax instead, for example <div :class="val">.`,
				src.StartPos, src.EndPos, false)
		}
		normalized := strings.TrimSpace(whitespaceRE.ReplaceAllString(staticClass, " "))
		encoded, _ := json.Marshal(normalized)
		el.StaticClass = string(encoded)
	}
	if binding, ok := getBindingAttr(el, "class", false); ok && binding != "" {
		el.ClassBinding = binding
	}
}

func genClassData(el *ast.Element) string {
	var b strings.Builder
	if el.StaticClass != "" {
		b.WriteString("staticClass:" + el.StaticClass + ",")
	}
	if el.ClassBinding != "" {
		b.WriteString("class:" + el.ClassBinding + ",")
	}
	return b.String()
}
