package util

import (
	"encoding/base64"
	"fmt"
	"io"
)

func Repeat(char rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = char
	}
	return string(result)
}

func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Banner frames a title between two rules of its own width.
func Banner(title string) string {
	rule := Repeat('=', len(title)+4)
	return fmt.Sprintf("%s\n  %s\n%s\n", rule, title, rule)
}

func DisplayLogo(w io.Writer) {
	logo := `
+==========================================+
|  _   _                      ____  _      |
| | | | |___  __ _  __ _  ___/ ___|| |_    |
| | | | / __|/ _` + "`" + ` |/ _` + "`" + ` |/ _ \___ \| __|   |
| | |_| \__ \ (_| | (_| |  __/___) | |_    |
|  \___/|___/\__,_|\__, |\___|____/ \__|   |
|                  |___/                   |
+==========================================+
`
	fmt.Fprint(w, logo)
}
