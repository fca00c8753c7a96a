package batch

import "github.com/stayrate/occupancy-proxy/pkg/schedule"

// Expand returns one WorkItem per (room, month) pair, all months of the first
// room before the second room. An empty or reversed range yields no items.
func Expand(rooms []schedule.Room, rng schedule.DateRange) []schedule.WorkItem {
	months := rng.Months()
	if len(months) == 0 || len(rooms) == 0 {
		return nil
	}

	items := make([]schedule.WorkItem, 0, len(rooms)*len(months))
	for _, room := range rooms {
		for _, ym := range months {
			items = append(items, schedule.WorkItem{
				RoomID:    room.ID,
				RoomLabel: room.Label,
				Year:      ym.Year,
				Month:     ym.Month,
			})
		}
	}
	return items
}

// Partition cuts items into contiguous groups of at most size elements.
func Partition(items []schedule.WorkItem, size int) [][]schedule.WorkItem {
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([][]schedule.WorkItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
