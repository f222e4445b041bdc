package commands

import (
	"context"
	"flag"
	"fmt"

	"taskhub/internal/service"
	"taskhub/internal/tasklist"
)

// pageFlags select the page that row references point into. They must
// match the flags given to the list command that showed the rows.
type pageFlags struct {
	page   int
	search string
	status string
}

func (p *pageFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&p.page, "page", 1, "")
	fs.StringVar(&p.search, "search", "", "")
	fs.StringVar(&p.status, "status", string(service.StatusAll), "")
}

// load fetches the selected page into ctrl.
func (p *pageFlags) load(ctx context.Context, ctrl *tasklist.Controller) error {
	if p.page < 1 {
		return &RefError{Msg: fmt.Sprintf("invalid page number: %d", p.page)}
	}
	filter, err := service.ParseStatusFilter(p.status)
	if err != nil {
		return err
	}
	return ctrl.Load(ctx, p.page, p.search, filter)
}

// resolveRefs maps refs to task IDs. The selected page is fetched only if
// a row reference needs it.
func resolveRefs(ctx context.Context, ctrl *tasklist.Controller, p *pageFlags, refs []TaskRef) ([]string, error) {
	var tasks []service.Task
	loaded := false

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID != "" {
			ids = append(ids, ref.ID)
			continue
		}
		if !loaded {
			if err := p.load(ctx, ctrl); err != nil {
				return nil, err
			}
			tasks = ctrl.Snapshot().Tasks
			loaded = true
		}
		if ref.Row > len(tasks) {
			return nil, &RefError{Msg: fmt.Sprintf("task number out of range: %d", ref.Row)}
		}
		ids = append(ids, tasks[ref.Row-1].ID)
	}
	return ids, nil
}
