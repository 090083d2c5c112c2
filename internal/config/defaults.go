package config

// Default configuration values.
const (
	DefaultOutput     = "auto" // table on a terminal, json otherwise
	DefaultServerAddr = ":8080"
)

// Config file names, searched in this order.
const (
	ConfigFileName    = "leapconn.yaml"
	ConfigFileNameAlt = "leapconn.yml"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"auto", "table", "json", "csv", "markdown", "yaml"}

// ValidOutput reports whether format is an accepted output format.
func ValidOutput(format string) bool {
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

func defaults() map[string]any {
	return map[string]any{
		"default":      "",
		"output":       DefaultOutput,
		"verbose":      false,
		"server.addr":  DefaultServerAddr,
		"server.watch": false,
	}
}
