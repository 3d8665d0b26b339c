package cli

// ANSI color codes
const (
	ColorReset      = "\033[0m"
	ColorLightBrown = "\033[38;5;180m" // Light brown/tan for user messages
	ColorOrange     = "\033[38;5;208m"
	ColorGray       = "\033[90m"
	ColorCyan       = "\033[36m"
	ColorBold       = "\033[1m"
	ColorItalic     = "\033[3m"
)
