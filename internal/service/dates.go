package service

import (
	"fmt"
	"time"

	"github.com/brbranch/semstore/internal/model"
)

// DateLayout は日付フィルタの形式
const DateLayout = "2006-01-02"

// parseDateRange は YYYY-MM-DD の範囲を loc の暦日でepochミリ秒に変換する
// start はその日の0:00:00.000、end はその日の23:59:59.999（両端を含む）
// start > end でもエラーにしない。述語がそのまま適用されて結果は空になる
func parseDateRange(start, end string, loc *time.Location) (since, until *int64, err error) {
	if start != "" {
		t, err := time.ParseInLocation(DateLayout, start, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: startDate %q", ErrInvalidDate, start)
		}
		ms := model.Millis(t)
		since = &ms
	}

	if end != "" {
		t, err := time.ParseInLocation(DateLayout, end, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: endDate %q", ErrInvalidDate, end)
		}
		// 翌日0時の1ms前（夏時間の切り替え日も正しく扱える）
		ms := model.Millis(t.AddDate(0, 0, 1)) - 1
		until = &ms
	}

	return since, until, nil
}
