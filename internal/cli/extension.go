package cli

import (
	"os"

	"github.com/vvip-tv/vvip-parser/internal/plugin"
)

// readExtension interprets the --extend value: the contents of the file it
// names when that file can be read, otherwise the text itself.
func readExtension(value string) plugin.Extension {
	if value == "" {
		return plugin.Extension{}
	}
	if data, err := os.ReadFile(value); err == nil {
		return plugin.ParseExtension(string(data))
	}
	return plugin.ParseExtension(value)
}
