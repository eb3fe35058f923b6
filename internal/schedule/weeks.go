package schedule

import (
	"time"

	"cloud.google.com/go/civil"

	"questcal/internal/model"
)

// SliceCompleteWeeks partitions [start, end] into consecutive 7-day blocks.
//
// The first block starts on the first date >= start whose weekday equals
// boundary (start's own weekday when boundary is nil). A block is emitted
// only while at least 7 days remain before end, so partial weeks at either
// edge are never returned and a range shorter than 7 days yields none.
// end before start is an error.
func SliceCompleteWeeks(start, end civil.Date, boundary *time.Weekday) ([]model.WeekBlock, error) {
	if err := model.CheckRange(start, end); err != nil {
		return nil, err
	}

	from := start
	if boundary != nil {
		shift := (int(*boundary) - int(model.WeekdayOf(start)) + 7) % 7
		from = start.AddDays(shift)
	}

	var blocks []model.WeekBlock
	for !from.AddDays(7).After(end) {
		blocks = append(blocks, model.WeekBlock{From: from, To: from.AddDays(6)})
		from = from.AddDays(7)
	}
	return blocks, nil
}

// CountCompleteWeeks is len(SliceCompleteWeeks(...)).
func CountCompleteWeeks(start, end civil.Date, boundary *time.Weekday) (int, error) {
	blocks, err := SliceCompleteWeeks(start, end, boundary)
	return len(blocks), err
}

// HasCompleteWeeks reports whether the range holds at least one block.
func HasCompleteWeeks(start, end civil.Date, boundary *time.Weekday) (bool, error) {
	n, err := CountCompleteWeeks(start, end, boundary)
	return n > 0, err
}

// FirstCompleteWeek returns the earliest block, if any.
func FirstCompleteWeek(start, end civil.Date, boundary *time.Weekday) (model.WeekBlock, bool, error) {
	blocks, err := SliceCompleteWeeks(start, end, boundary)
	if err != nil || len(blocks) == 0 {
		return model.WeekBlock{}, false, err
	}
	return blocks[0], true, nil
}

// LastCompleteWeek returns the latest block, if any.
func LastCompleteWeek(start, end civil.Date, boundary *time.Weekday) (model.WeekBlock, bool, error) {
	blocks, err := SliceCompleteWeeks(start, end, boundary)
	if err != nil || len(blocks) == 0 {
		return model.WeekBlock{}, false, err
	}
	return blocks[len(blocks)-1], true, nil
}
