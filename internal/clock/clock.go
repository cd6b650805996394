// Package clock は現在時刻の取得を抽象化する。
// ドメインロジックは time.Now を直接呼ばず、注入された Clock から時刻を得る。
package clock

import "time"

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now を返すClockを生成する。
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

type fixedClock struct {
	now time.Time
}

// NewFixed は常に同じ時刻を返すClockを生成する（テスト用）。
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t}
}

func (f fixedClock) Now() time.Time {
	return f.now
}
