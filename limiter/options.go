package limiter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Option func(*Options)

// PeriodLimit period 内最多 times 次
type PeriodLimit struct {
	WsConnectPeriod string
	WsConnectTimes  int64
}

type Options struct {
	PeriodLimitArray []PeriodLimit
}

func WithPeriodLimitArray(p []PeriodLimit) Option {
	return func(o *Options) {
		o.PeriodLimitArray = p
	}
}

// ParsePeriod 解析 "1s"、"500ms"、"5m" 这类字符串
func ParsePeriod(period string) (time.Duration, error) {
	period = strings.TrimSpace(period)

	var numStr, unitStr string
	for i, char := range period {
		if char >= '0' && char <= '9' {
			numStr += string(char)
		} else {
			unitStr = period[i:]
			break
		}
	}
	num, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", period, err)
	}

	var unit time.Duration
	switch strings.ToLower(unitStr) {
	case "ms":
		unit = time.Millisecond
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	default:
		return 0, fmt.Errorf("unsupported time unit: %s", unitStr)
	}
	return time.Duration(num) * unit, nil
}
