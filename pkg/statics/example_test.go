package statics_test

import (
	"fmt"

	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/statics"
)

func ExampleClassify() {
	m := files.ManifestOf(
		files.Entry{Name: "index.php", File: files.FileBlob{}},
		files.Entry{Name: "style.css", File: files.FileBlob{}},
		files.Entry{Name: "app.js", File: files.FileBlob{}},
	)

	static, err := statics.Classify(m, statics.DefaultRules())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(static.Keys())
	// Output:
	// [style.css app.js]
}

func ExampleParseRule() {
	re, _ := statics.ParseRule(`/\.PNG$/i`)
	fmt.Println(re.MatchString("logo.png"))

	// Without slashes the rule is used verbatim
	re, _ = statics.ParseRule(`^assets/`)
	fmt.Println(re.MatchString("assets/site.webmanifest"))
	// Output:
	// true
	// true
}
