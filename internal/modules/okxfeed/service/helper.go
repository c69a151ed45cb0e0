package service

import (
	"fmt"
	"strings"
)

// normalizeBar приводит метку интервала к внутреннему виду OKX-бара.
func normalizeBar(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m":
		return "1m", nil
	case "3m":
		return "3m", nil
	case "5m":
		return "5m", nil
	case "15m":
		return "15m", nil
	case "30m":
		return "30m", nil
	case "60m", "1h":
		return "1H", nil
	case "2h":
		return "2H", nil
	case "4h":
		return "4H", nil
	case "6h":
		return "6H", nil
	case "12h":
		return "12H", nil
	case "1d":
		return "1D", nil
	case "1w":
		return "1W", nil
	case "1mo", "1mth":
		return "1M", nil
	}
	return "", fmt.Errorf("unsupported interval label: %q", tf)
}
