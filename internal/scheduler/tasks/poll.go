package tasks

import (
	"fmt"

	"github.com/anisub/anisub/internal/poller"
	"github.com/anisub/anisub/internal/scheduler"
)

const PollTaskID = "feed-poll"

func buildPollCronExpr(intervalMin int) string {
	if intervalMin <= 0 {
		intervalMin = 5
	}
	return fmt.Sprintf("*/%d * * * *", intervalMin)
}

// RegisterPollTask schedules the feed sweep on aligned wall-clock
// boundaries, with an immediate run at startup.
func RegisterPollTask(sched *scheduler.Scheduler, p *poller.Poller, intervalMin int) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PollTaskID,
		Name:        "Feed Poll",
		Description: "Fetch new releases from the nyaa feed and fan them out",
		Cron:        buildPollCronExpr(intervalMin),
		RunOnStart:  true,
		Func:        p.Run,
	})
}
