package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	dateLayout      = "2006-01-02"
)

type tools struct {
	svc    Services
	logger *slog.Logger
}

func registerTools(server *sdkmcp.Server, svc Services, logger *slog.Logger) {
	t := &tools{svc: svc, logger: logger}

	// Weeks
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_weeks",
		Description: "List all weeks, most recent first",
	}, adapt(t.listWeeks))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_week",
		Description: "Get a week and its bonus configuration",
	}, adapt(t.getWeek))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_week",
		Description: "Create a week with a unique label and date boundary",
	}, adapt(t.createWeek))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_week",
		Description: "Change a week's label, boundary or bonus configuration",
	}, adapt(t.updateWeek))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_week",
		Description: "Delete a week and every record in it",
	}, adapt(t.deleteWeek))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "refresh_week",
		Description: "Drop cached data for a week and reload it from the store",
	}, adapt(t.refreshWeek))

	// Records
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_records",
		Description: "Page through a week's records in id order",
	}, adapt(t.listRecords))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_record",
		Description: "Get a single record",
	}, adapt(t.getRecord))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_record",
		Description: "Add a record to a week",
	}, adapt(t.createRecord))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_record",
		Description: "Change fields of a record; omitted fields are left unchanged",
	}, adapt(t.updateRecord))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_record",
		Description: "Delete a record",
	}, adapt(t.deleteRecord))

	// Metrics and diagnostics
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_aggregate",
		Description: "Get totals and score statistics for a week",
	}, adapt(t.getAggregate))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "cache_stats",
		Description: "Show hit, miss and eviction counters for every cache pool",
	}, adapt(t.cacheStats))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_changes",
		Description: "List journaled record changes, newest first",
	}, adapt(t.recentChanges))

	// Timers
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "start_timer",
		Description: "Start timing a record from its current duration",
	}, adapt(t.startTimer))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "pause_timer",
		Description: "Pause a running timer",
	}, adapt(t.pauseTimer))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "resume_timer",
		Description: "Resume a paused timer",
	}, adapt(t.resumeTimer))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "stop_timer",
		Description: "Stop a timer and save the final duration",
	}, adapt(t.stopTimer))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_timers",
		Description: "List active timers",
	}, adapt(t.listTimers))
}

// adapt registers h without an inferred output schema. Outputs embed
// timestamps, which are serialized as strings.
func adapt[In, Out any](h func(context.Context, In) (Out, error)) sdkmcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
		out, err := h(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	}
}

func (t *tools) listWeeks(ctx context.Context, _ EmptyParams) (WeekListResponse, error) {
	weeks, err := t.svc.Data.ListWeeks(ctx)
	if err != nil {
		return WeekListResponse{}, toolError(err)
	}
	return WeekListResponse{Weeks: weeks}, nil
}

func (t *tools) getWeek(ctx context.Context, in WeekIDParams) (WeekResponse, error) {
	w, err := t.svc.Data.GetWeek(ctx, in.WeekID)
	if err != nil {
		return WeekResponse{}, toolError(err)
	}
	return WeekResponse{Week: w}, nil
}

func (t *tools) createWeek(ctx context.Context, in CreateWeekParams) (WeekResponse, error) {
	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return WeekResponse{}, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return WeekResponse{}, err
	}
	req := week.CreateRequest{
		Label:     in.Label,
		StartDate: start,
		EndDate:   end,
		IsBonus:   in.IsBonus,
	}
	if in.Bonus != nil {
		req.Bonus = *in.Bonus
	} else {
		req.Bonus.UseGlobal = true
	}
	w, err := t.svc.Data.CreateWeek(ctx, req)
	if err != nil {
		return WeekResponse{}, toolError(err)
	}
	return WeekResponse{Week: w}, nil
}

func (t *tools) updateWeek(ctx context.Context, in UpdateWeekParams) (WeekResponse, error) {
	req := week.UpdateRequest{
		Label:   in.Label,
		IsBonus: in.IsBonus,
		Bonus:   in.Bonus,
	}
	if in.StartDate != nil {
		d, err := parseDate("start_date", *in.StartDate)
		if err != nil {
			return WeekResponse{}, err
		}
		req.StartDate = &d
	}
	if in.EndDate != nil {
		d, err := parseDate("end_date", *in.EndDate)
		if err != nil {
			return WeekResponse{}, err
		}
		req.EndDate = &d
	}
	w, err := t.svc.Data.UpdateWeek(ctx, in.WeekID, req)
	if err != nil {
		return WeekResponse{}, toolError(err)
	}
	return WeekResponse{Week: w}, nil
}

func (t *tools) deleteWeek(ctx context.Context, in WeekIDParams) (MutationResponse, error) {
	if err := t.svc.Data.DeleteWeek(ctx, in.WeekID); err != nil {
		return MutationResponse{}, toolError(err)
	}
	return MutationResponse{OK: true}, nil
}

func (t *tools) refreshWeek(ctx context.Context, in WeekIDParams) (MutationResponse, error) {
	if _, err := t.svc.Data.GetWeek(ctx, in.WeekID); err != nil {
		return MutationResponse{}, toolError(err)
	}
	t.svc.Data.RefreshWeek(in.WeekID)
	return MutationResponse{OK: true}, nil
}

func (t *tools) listRecords(ctx context.Context, in ListRecordsParams) (RecordPageResponse, error) {
	if in.Offset < 0 || in.Limit < 0 {
		return RecordPageResponse{}, &APIError{Code: "INVALID_INPUT", Message: "offset and limit must not be negative"}
	}
	limit := in.Limit
	if limit == 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	grid, err := t.svc.Grids.For(getSessionID(ctx))
	if err != nil {
		return RecordPageResponse{}, toolError(err)
	}
	total, err := grid.RowCount(ctx, in.WeekID)
	if err != nil {
		return RecordPageResponse{}, toolError(err)
	}
	end := min(in.Offset+limit, total)
	page := make([]record.Record, 0, max(end-in.Offset, 0))
	for i := in.Offset; i < end; i++ {
		rec, err := grid.RowAt(ctx, in.WeekID, i)
		if err != nil {
			return RecordPageResponse{}, toolError(err)
		}
		page = append(page, rec)
	}
	return RecordPageResponse{
		WeekID:  in.WeekID,
		Total:   total,
		Offset:  in.Offset,
		Records: page,
		Window:  grid.Window(),
	}, nil
}

func (t *tools) getRecord(ctx context.Context, in RecordIDParams) (RecordResponse, error) {
	rec, err := t.svc.Data.GetRecord(ctx, in.RecordID)
	if err != nil {
		return RecordResponse{}, toolError(err)
	}
	return RecordResponse{Record: rec}, nil
}

func (t *tools) createRecord(ctx context.Context, in CreateRecordParams) (CreateRecordResponse, error) {
	fields, err := in.Fields.fields()
	if err != nil {
		return CreateRecordResponse{}, err
	}
	id, err := t.svc.Data.CreateRecord(ctx, in.WeekID, fields)
	if err != nil {
		return CreateRecordResponse{}, toolError(err)
	}
	return CreateRecordResponse{ID: id}, nil
}

func (t *tools) updateRecord(ctx context.Context, in UpdateRecordParams) (MutationResponse, error) {
	changes, err := in.Fields.changes()
	if err != nil {
		return MutationResponse{}, err
	}
	ok, err := t.svc.Data.UpdateRecord(ctx, in.RecordID, changes)
	if err != nil {
		return MutationResponse{}, toolError(err)
	}
	if !ok {
		return MutationResponse{}, MapError(record.ErrRecordNotFound)
	}
	return MutationResponse{OK: true}, nil
}

func (t *tools) deleteRecord(ctx context.Context, in RecordIDParams) (MutationResponse, error) {
	ok, err := t.svc.Data.DeleteRecord(ctx, in.RecordID)
	if err != nil {
		return MutationResponse{}, toolError(err)
	}
	if !ok {
		return MutationResponse{}, MapError(record.ErrRecordNotFound)
	}
	return MutationResponse{OK: true}, nil
}

func (t *tools) getAggregate(ctx context.Context, in WeekIDParams) (AggregateResponse, error) {
	if _, err := t.svc.Data.GetWeek(ctx, in.WeekID); err != nil {
		return AggregateResponse{}, toolError(err)
	}
	agg, err := t.svc.Data.GetAggregate(ctx, in.WeekID)
	if err != nil {
		return AggregateResponse{}, toolError(err)
	}
	return AggregateResponse{Aggregate: agg, TotalHours: agg.Metrics.TotalHours()}, nil
}

func (t *tools) cacheStats(ctx context.Context, _ EmptyParams) (CacheStatsResponse, error) {
	stats := t.svc.Data.CacheStats()
	out := make([]PoolStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, PoolStats{Stats: s, HitRate: s.HitRate()})
	}
	return CacheStatsResponse{Pools: out}, nil
}

func (t *tools) recentChanges(ctx context.Context, in RecentChangesParams) (RecentChangesResponse, error) {
	opts := activity.ListOptions{
		WeekID:   in.WeekID,
		RecordID: in.RecordID,
		Limit:    in.Limit,
		Offset:   in.Offset,
	}
	if in.ChangeType != "" {
		ct := activity.ChangeType(in.ChangeType)
		opts.ChangeType = &ct
	}
	if opts.Limit == 0 {
		opts.Limit = defaultPageSize
	}
	entries, err := t.svc.Activity.Recent(ctx, opts)
	if err != nil {
		return RecentChangesResponse{}, toolError(err)
	}
	return RecentChangesResponse{Changes: entries}, nil
}

func (t *tools) startTimer(ctx context.Context, in RecordIDParams) (TimerResponse, error) {
	st, err := t.svc.Timers.Start(ctx, in.RecordID)
	if err != nil {
		return TimerResponse{}, toolError(err)
	}
	t.logger.InfoContext(ctx, "timer started via mcp", "record_id", in.RecordID, "session_id", getSessionID(ctx))
	return TimerResponse{Timer: st}, nil
}

func (t *tools) pauseTimer(ctx context.Context, in RecordIDParams) (TimerResponse, error) {
	st, err := t.svc.Timers.Pause(ctx, in.RecordID)
	if err != nil {
		return TimerResponse{}, toolError(err)
	}
	return TimerResponse{Timer: st}, nil
}

func (t *tools) resumeTimer(ctx context.Context, in RecordIDParams) (TimerResponse, error) {
	st, err := t.svc.Timers.Resume(in.RecordID)
	if err != nil {
		return TimerResponse{}, toolError(err)
	}
	return TimerResponse{Timer: st}, nil
}

func (t *tools) stopTimer(ctx context.Context, in RecordIDParams) (StopTimerResponse, error) {
	total, err := t.svc.Timers.Stop(ctx, in.RecordID)
	if err != nil {
		return StopTimerResponse{}, toolError(err)
	}
	return StopTimerResponse{RecordID: in.RecordID, DurationSeconds: int64(total / time.Second)}, nil
}

func (t *tools) listTimers(ctx context.Context, _ EmptyParams) (TimerListResponse, error) {
	return TimerListResponse{Timers: t.svc.Timers.Active()}, nil
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("%s must be YYYY-MM-DD", field)}
	}
	return d, nil
}

func parseTimestamp(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("%s must be an RFC 3339 timestamp", field)}
	}
	return &ts, nil
}

func (p RecordFieldsParams) times() (begin, end *time.Time, err error) {
	if begin, err = parseTimestamp("time_begin", p.TimeBegin); err != nil {
		return nil, nil, err
	}
	if end, err = parseTimestamp("time_end", p.TimeEnd); err != nil {
		return nil, nil, err
	}
	return begin, end, nil
}

func (p RecordFieldsParams) changes() (record.Changes, error) {
	begin, end, err := p.times()
	if err != nil {
		return record.Changes{}, err
	}
	return record.Changes{
		AttemptID:        p.AttemptID,
		DurationSeconds:  p.DurationSeconds,
		ProjectID:        p.ProjectID,
		ProjectName:      p.ProjectName,
		OperationID:      p.OperationID,
		TimeLimitSeconds: p.TimeLimitSeconds,
		DateAudited:      p.DateAudited,
		Score:            p.Score,
		Feedback:         p.Feedback,
		Locale:           p.Locale,
		BonusPaid:        p.BonusPaid,
		TimeBegin:        begin,
		TimeEnd:          end,
	}, nil
}

func (p RecordFieldsParams) fields() (record.Fields, error) {
	begin, end, err := p.times()
	if err != nil {
		return record.Fields{}, err
	}
	return record.Fields{
		AttemptID:        deref(p.AttemptID),
		DurationSeconds:  deref(p.DurationSeconds),
		ProjectID:        deref(p.ProjectID),
		ProjectName:      deref(p.ProjectName),
		OperationID:      deref(p.OperationID),
		TimeLimitSeconds: deref(p.TimeLimitSeconds),
		DateAudited:      deref(p.DateAudited),
		Score:            deref(p.Score),
		Feedback:         deref(p.Feedback),
		Locale:           deref(p.Locale),
		BonusPaid:        deref(p.BonusPaid),
		TimeBegin:        begin,
		TimeEnd:          end,
	}, nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
