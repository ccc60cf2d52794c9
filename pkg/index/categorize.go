package index

import (
	"sort"
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// DefaultBucket holds rules that apply to every file type and framework.
const DefaultBucket = "default"

// Extensions are the file extensions the index keeps dedicated buckets for.
var Extensions = []string{
	".vue", ".js", ".jsx", ".ts", ".tsx", ".nvue",
	".wxml", ".wxss", ".wxs", ".swan", ".ttml", ".qml",
	".html", ".json",
}

// Frameworks are the framework names the index keeps dedicated buckets for.
var Frameworks = []string{"vue", "react", "uni-app", "wechat", "taro"}

// Targets is where a rule applies. A rule with no extension targets lands
// in DefaultBucket; likewise for frameworks.
type Targets struct {
	Extensions []string
	Frameworks []string
}

// IsDefault reports whether the rule applies to every file type.
func (t Targets) IsDefault() bool {
	return len(t.Extensions) == 1 && t.Extensions[0] == DefaultBucket
}

// keywordTarget maps id substrings to the buckets they select.
type keywordTarget struct {
	keywords   []string
	extensions []string
	framework  string
}

var keywordTargets = []keywordTarget{
	{[]string{"vue", "v-"}, []string{".vue", ".nvue"}, "vue"},
	{[]string{"react", "jsx"}, []string{".jsx", ".tsx"}, "react"},
	{[]string{"wechat", "wx-"}, []string{".wxml", ".wxss", ".wxs"}, "wechat"},
	{[]string{"uni-app", "uni-"}, []string{".vue", ".nvue", ".js"}, "uni-app"},
	{[]string{"taro"}, []string{".tsx", ".jsx", ".js"}, "taro"},
}

// scriptFamily receives language-agnostic rules of the categories below.
var scriptFamily = []string{".js", ".jsx", ".ts", ".tsx", ".vue", ".nvue"}

var scriptCategories = map[string]bool{
	"injection": true,
	"secrets":   true,
	"input":     true,
}

// Categorize derives the extension and framework buckets of a rule from
// keywords in its id, falling back to its category. It is a pure function.
//
// The mapping is a naming convention: a rule called "xss-v-html" targets Vue
// files because its id contains "v-".
func Categorize(r *types.Rule) Targets {
	id := strings.ToLower(r.ID)
	exts := make(map[string]bool)
	var frameworks []string

	for _, kt := range keywordTargets {
		if !containsAny(id, kt.keywords) {
			continue
		}
		for _, ext := range kt.extensions {
			exts[ext] = true
		}
		frameworks = append(frameworks, kt.framework)
	}

	if len(exts) == 0 && scriptCategories[strings.ToLower(r.Category)] {
		for _, ext := range scriptFamily {
			exts[ext] = true
		}
	}

	t := Targets{Frameworks: frameworks}
	if len(exts) == 0 {
		t.Extensions = []string{DefaultBucket}
	} else {
		t.Extensions = make([]string, 0, len(exts))
		for ext := range exts {
			t.Extensions = append(t.Extensions, ext)
		}
		sort.Strings(t.Extensions)
	}
	if len(t.Frameworks) == 0 {
		t.Frameworks = []string{DefaultBucket}
	}
	return t
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
