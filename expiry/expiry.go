// Package expiry 计算交割合约的到期日（周五 08:00 UTC 交割）。
package expiry

import (
	"time"
)

const (
	dateLayout = "060102"
	// 交割时刻
	settleHour = 8
)

const (
	ThisWeek    = "this_week"
	NextWeek    = "next_week"
	Quarter     = "quarter"
	NextQuarter = "next_quarter"
)

// Dates 当前在交易的交割合约日期，格式 yymmdd
type Dates struct {
	ThisWeek    string
	NextWeek    string
	Quarter     string
	NextQuarter string
}

// List 按 当周、次周、季度、次季度 顺序返回，去重
func (d Dates) List() []string {
	out := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	for _, s := range []string{d.ThisWeek, d.NextWeek, d.Quarter, d.NextQuarter} {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ContractDate 把火币的 contract_type 转成日期，未知类型返回空串
func (d Dates) ContractDate(contractType string) string {
	switch contractType {
	case ThisWeek:
		return d.ThisWeek
	case NextWeek:
		return d.NextWeek
	case Quarter:
		return d.Quarter
	case NextQuarter:
		return d.NextQuarter
	}
	return ""
}

// At 计算 now 时刻的合约日期
func At(now time.Time) Dates {
	thisWeek := nextSettlement(now.UTC())
	nextWeek := thisWeek.AddDate(0, 0, 7)

	// 季度合约距离交割不足两周时，由当周/次周合约接替
	quarter := lastFridayOfQuarter(thisWeek)
	if !quarter.After(nextWeek) {
		quarter = lastFridayOfQuarter(quarterStart(thisWeek).AddDate(0, 3, 0))
	}
	nextQuarter := lastFridayOfQuarter(quarterStart(quarter).AddDate(0, 3, 0))

	return Dates{
		ThisWeek:    thisWeek.Format(dateLayout),
		NextWeek:    nextWeek.Format(dateLayout),
		Quarter:     quarter.Format(dateLayout),
		NextQuarter: nextQuarter.Format(dateLayout),
	}
}

// Fridays 当前在交易的交割日期列表
func Fridays(now time.Time) []string {
	return At(now).List()
}

func nextSettlement(t time.Time) time.Time {
	days := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	f := time.Date(t.Year(), t.Month(), t.Day()+days, settleHour, 0, 0, 0, time.UTC)
	if !t.Before(f) {
		f = f.AddDate(0, 0, 7)
	}
	return f
}

func quarterStart(t time.Time) time.Time {
	m := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(m), 1, settleHour, 0, 0, 0, time.UTC)
}

func lastFridayOfQuarter(t time.Time) time.Time {
	// 季度最后一个月的最后一天
	end := quarterStart(t).AddDate(0, 3, -1)
	back := (int(end.Weekday()) - int(time.Friday) + 7) % 7
	return end.AddDate(0, 0, -back)
}
