package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/store"
)

const schemaEvents = `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

const schemaEventsIndex = `CREATE INDEX IF NOT EXISTS idx_monitor_events_run ON monitor_events(run_id, event_type)`

// Service 负责持久化运行事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(ctx context.Context, st *store.Store, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := st.Migrate(ctx, schemaEvents, schemaEventsIndex); err != nil {
		return nil, fmt.Errorf("monitor: 初始化表失败: %w", err)
	}

	return &Service{
		db:     st.DB(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewRunID 生成一次运行的唯一标识。
func NewRunID() string {
	return uuid.NewString()
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.RunID == "" {
		return fmt.Errorf("monitor: run_id 不能为空")
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (run_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
		event.RunID, string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordRunStarted 记录运行开始。
func (s *Service) RecordRunStarted(ctx context.Context, runID string, payload RunStartedPayload) {
	s.recordSoft(ctx, runID, EventRunStarted, payload, "记录开始事件失败")
}

// RecordBacktest 记录单次回测完成。
func (s *Service) RecordBacktest(ctx context.Context, runID string, res backtest.Result, elapsed time.Duration) {
	s.recordSoft(ctx, runID, EventRunCompleted, RunCompletedPayload{
		Mode:            ModeBacktest,
		Metrics:         res.Metrics,
		FinalEquity:     res.FinalEquity,
		FinalCapital:    res.FinalCapital,
		TotalCommission: res.TotalCommission,
		TotalSlippage:   res.TotalSlippage,
		Elapsed:         elapsed.String(),
	}, "记录完成事件失败")
}

// RecordWalkForward 逐窗口记录结果，最后写入聚合指标。
func (s *Service) RecordWalkForward(ctx context.Context, runID string, res backtest.WalkForwardResult, elapsed time.Duration) {
	for _, w := range res.Windows {
		s.recordSoft(ctx, runID, EventWindowCompleted, WindowCompletedPayload{
			Window:      w.Window,
			Metrics:     w.Result.Metrics,
			FinalEquity: w.Result.FinalEquity,
		}, "记录窗口事件失败")
	}
	s.recordSoft(ctx, runID, EventRunCompleted, WalkForwardCompletedPayload{
		Mode:           ModeWalkForward,
		NWindows:       res.NWindows,
		AvgSharpe:      res.AvgSharpe,
		AvgReturn:      res.AvgReturn,
		AvgMaxDrawdown: res.AvgMaxDrawdown,
		AvgWinRate:     res.AvgWinRate,
		Consistency:    res.Consistency,
		Elapsed:        elapsed.String(),
	}, "记录完成事件失败")
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, runID, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.recordSoft(ctx, runID, EventError, payload, "记录异常事件失败")
}

func (s *Service) recordSoft(ctx context.Context, runID string, typ EventType, payload interface{}, failMsg string) {
	if err := s.Record(ctx, Event{
		RunID:   runID,
		Type:    typ,
		Payload: payload,
	}); err != nil {
		s.logger.Warn(failMsg, zap.String("run_id", runID), zap.Error(err))
	}
}

// ListEvents 按运行与类型检索事件，按写入顺序返回。空 runID 或空类型表示不过滤。
func (s *Service) ListEvents(ctx context.Context, runID string, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT run_id, event_type, payload, created_at FROM monitor_events WHERE 1 = 1`
	args := make([]interface{}, 0, 3)
	if runID != "" {
		query += ` AND run_id = ?`
		args = append(args, runID)
	}
	if eventType != "" {
		query += ` AND event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			run     string
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&run, &typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			s.logger.Debug("事件时间解析失败", zap.String("created_at", created), zap.Error(parseErr))
		}

		events = append(events, Event{
			RunID:     run,
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
