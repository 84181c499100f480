package compiler

import "strings"

// makeSet builds a lookup set from a comma-separated list.
func makeSet(list string) map[string]bool {
	set := map[string]bool{}
	for _, item := range strings.Split(list, ",") {
		set[item] = true
	}
	return set
}

var htmlTags = makeSet(
	"html,body,base,head,link,meta,style,title," +
		"address,article,aside,footer,header,h1,h2,h3,h4,h5,h6,hgroup,nav,section," +
		"div,dd,dl,dt,figcaption,figure,picture,hr,img,li,main,ol,p,pre,ul," +
		"a,b,abbr,bdi,bdo,br,cite,code,data,dfn,em,i,kbd,mark,q,rp,rt,rtc,ruby," +
		"s,samp,small,span,strong,sub,sup,time,u,var,wbr,area,audio,map,track,video," +
		"embed,object,param,source,canvas,script,noscript,del,ins," +
		"caption,col,colgroup,table,thead,tbody,td,th,tr," +
		"button,datalist,fieldset,form,input,label,legend,meter,optgroup,option," +
		"output,progress,select,textarea," +
		"details,dialog,menu,menuitem,summary," +
		"content,element,shadow,template,blockquote,iframe,tfoot")

var svgTags = makeSet(
	"svg,animate,circle,clippath,cursor,defs,desc,ellipse,filter,font-face," +
		"foreignobject,g,glyph,image,line,marker,mask,missing-glyph,path,pattern," +
		"polygon,polyline,rect,switch,symbol,text,textpath,tspan,use,view")

var unaryTags = makeSet(
	"area,base,br,col,embed,frame,hr,img,input,isindex,keygen," +
		"link,meta,param,source,track,wbr")

// Tags that may leave their end tag implicit when a sibling of the same
// name opens.
var leftOpenTags = makeSet("colgroup,dd,dt,li,options,p,td,tfoot,th,thead,tr,source")

// HTML5 elements that disallow being wrapped inside a paragraph.
var nonPhrasingTags = makeSet(
	"address,article,aside,base,blockquote,body,caption,col,colgroup,dd," +
		"details,dialog,div,dl,dt,fieldset,figcaption,figure,footer,form," +
		"h1,h2,h3,h4,h5,h6,head,header,hgroup,hr,html,legend,li,menuitem,meta," +
		"optgroup,option,param,rp,rt,source,style,summary,tbody,td,tfoot,th,thead," +
		"title,tr,track")

var acceptValueTags = makeSet("input,textarea,option,select,progress")

// IsHTMLTag reports whether tag is a known HTML element.
func IsHTMLTag(tag string) bool {
	return htmlTags[strings.ToLower(tag)]
}

// IsSVGTag reports whether tag is a known SVG element.
func IsSVGTag(tag string) bool {
	return svgTags[strings.ToLower(tag)]
}

// IsReservedTag reports whether tag is a platform element rather than a
// user component.
func IsReservedTag(tag string) bool {
	return IsHTMLTag(tag) || IsSVGTag(tag)
}

// IsUnaryTag reports whether tag never has a closing tag.
func IsUnaryTag(tag string) bool {
	return unaryTags[strings.ToLower(tag)]
}

// CanBeLeftOpenTag reports whether tag may omit its closing tag.
func CanBeLeftOpenTag(tag string) bool {
	return leftOpenTags[strings.ToLower(tag)]
}

// IsNonPhrasingTag reports whether an open paragraph must close before tag.
func IsNonPhrasingTag(tag string) bool {
	return nonPhrasingTags[strings.ToLower(tag)]
}

// MustUseProp reports whether an attribute must be bound as a DOM property
// rather than an attribute on the given tag.
func MustUseProp(tag, attrType, name string) bool {
	switch name {
	case "value":
		return acceptValueTags[tag] && attrType != "button"
	case "selected":
		return tag == "option"
	case "checked":
		return tag == "input"
	case "muted":
		return tag == "video"
	}
	return false
}

// GetTagNamespace resolves the namespace of a tag.
func GetTagNamespace(tag string) string {
	if IsSVGTag(tag) {
		return "svg"
	}
	if tag == "math" {
		return "math"
	}
	return ""
}

// IsPreTag reports whether tag preserves whitespace.
func IsPreTag(tag string) bool {
	return tag == "pre"
}

// isBuiltInTag identifies framework-internal tags that are never static.
func isBuiltInTag(tag string) bool {
	return tag == "slot" || tag == "component"
}

// DefaultOptions returns the HTML platform configuration: web tag tables,
// the class and style modules, and the model, text, and html directives.
func DefaultOptions() *Options {
	return &Options{
		Modules: []Module{ClassModule(), StyleModule()},
		Directives: map[string]DirectiveGen{
			"model": ModelDirective,
			"text":  TextDirective,
			"html":  HTMLDirective,
		},
		IsReservedTag:    IsReservedTag,
		IsUnaryTag:       IsUnaryTag,
		CanBeLeftOpenTag: CanBeLeftOpenTag,
		IsNonPhrasingTag: IsNonPhrasingTag,
		IsPreTag:         IsPreTag,
		MustUseProp:      MustUseProp,
		GetTagNamespace:  GetTagNamespace,
		ExpectHTML:       true,
	}
}
