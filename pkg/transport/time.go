package transport

import "time"

func defaultNowMs() float64 {
	return float64(time.Now().UnixMilli())
}
