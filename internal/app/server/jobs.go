package server

import (
	"context"
	"fmt"
	"time"

	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/jobs"
)

type digestSource interface {
	PendingDigest(ctx context.Context) ([]requests.LeaderDigest, error)
}

type digestSender interface {
	Digest(ctx context.Context, userID string, lines []string) error
}

// pendingDigestJob reminds every leader of the requests still awaiting them.
// A failed delivery stops the run so the job is recorded as failed.
func pendingDigestJob(source digestSource, sender digestSender) jobs.RunFunc {
	return func(ctx context.Context) (any, error) {
		digests, err := source.PendingDigest(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pending requests: %w", err)
		}
		leaders, pending := 0, 0
		for _, digest := range digests {
			lines := make([]string, 0, len(digest.Pending))
			for _, req := range digest.Pending {
				lines = append(lines, digestLine(req))
			}
			if err := sender.Digest(ctx, digest.UserID, lines); err != nil {
				return map[string]any{"leaders": leaders, "pending": pending}, fmt.Errorf("digest for %s: %w", digest.UserID, err)
			}
			leaders++
			pending += len(lines)
		}
		return map[string]any{"leaders": leaders, "pending": pending}, nil
	}
}

func digestLine(req requests.Request) string {
	name := req.EmployeeName
	if name == "" {
		name = req.EmployeeID
	}
	line := fmt.Sprintf("%s %s %s", name, req.Type, req.StartDate.Format(time.DateOnly))
	if !req.EndDate.IsZero() && !req.EndDate.Equal(req.StartDate) {
		line += " to " + req.EndDate.Format(time.DateOnly)
	}
	if req.Time != "" {
		line += " at " + req.Time
	}
	return line
}
