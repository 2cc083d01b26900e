package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/asset"
	"github.com/asset-hub/asset-hub/internal/storage"
)

// Options 控制一次清理扫描的行为。
type Options struct {
	// DryRun 只统计不删除，供上线前预估清理量。
	DryRun bool
	// ExpiredOnly 仅删除已过期条目；为 false 时清空整个存储。
	ExpiredOnly bool
}

// Report 汇总一次扫描的结果。
type Report struct {
	// Deleted 是被删除（或 DryRun 下将被删除）的 ID 数。
	Deleted int
	// Skipped 是因未过期、无法判定或删除失败而保留的 ID 数。
	Skipped int
}

// Sweeper 遍历存储并删除过期条目。删除以 ID 为粒度：同一 ID 下任何一个
// 文件名未过期或无法判定时整个 ID 保留，避免把仍在服务的变体连带删掉。
type Sweeper struct {
	store  storage.Store
	logger *logrus.Logger

	// now 可注入，测试用固定时钟。
	now func() time.Time
}

// NewSweeper 构造清理器；logger 为 nil 时静默运行。
func NewSweeper(store storage.Store, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Run 执行一次完整扫描。单个条目的读取或删除失败只会记日志并跳过，
// 不会中断整体扫描；只有枚举 ID 失败或 context 取消才返回错误。
func (s *Sweeper) Run(ctx context.Context, opts Options) (Report, error) {
	started := s.now()

	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list ids: %w", err)
	}

	var report Report
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		remove, reason := s.shouldRemove(ctx, id, opts)
		if !remove {
			report.Skipped++
			s.logEntry(id, "skip", reason, opts.DryRun)
			continue
		}

		if !opts.DryRun {
			if err := s.store.RemoveAll(ctx, id); err != nil {
				report.Skipped++
				s.logEntryError(id, err)
				continue
			}
		}
		report.Deleted++
		s.logEntry(id, "delete", reason, opts.DryRun)
	}

	s.logSummary(report, opts, s.now().Sub(started))
	return report, nil
}

// shouldRemove 判定一个 ID 是否应整体删除，并给出可读的原因。
func (s *Sweeper) shouldRemove(ctx context.Context, id asset.FileID, opts Options) (bool, string) {
	if !opts.ExpiredOnly {
		return true, "full_sweep"
	}

	filenames, err := s.store.ListFilenames(ctx, id)
	if err != nil {
		return false, fmt.Sprintf("list filenames failed: %v", err)
	}
	if len(filenames) == 0 {
		// 目录存在但没有任何元数据记录，无从判定过期，保留待人工处理。
		return false, "no_metadata_records"
	}

	now := s.now()
	for _, filename := range filenames {
		meta, err := s.store.GetMetadata(ctx, id, filename)
		if err != nil {
			if errors.Is(err, storage.ErrMalformedMetadata) {
				return false, "malformed_metadata"
			}
			return false, fmt.Sprintf("read metadata failed: %v", err)
		}
		if meta.ExpiresAt == nil {
			// pending 或永不过期的条目都不允许清理。
			return false, "no_expiry"
		}
		if !meta.IsExpired(now) {
			return false, "not_expired"
		}
	}
	return true, "all_expired"
}

func (s *Sweeper) logEntry(id asset.FileID, action, reason string, dryRun bool) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"action":  "cleanup",
		"file_id": id.String(),
		"result":  action,
		"reason":  reason,
		"dry_run": dryRun,
	}).Debug("cleanup_entry")
}

func (s *Sweeper) logEntryError(id asset.FileID, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"action":  "cleanup",
		"file_id": id.String(),
		"error":   err.Error(),
	}).Warn("cleanup_remove_failed")
}

func (s *Sweeper) logSummary(report Report, opts Options, elapsed time.Duration) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"action":       "cleanup",
		"deleted":      report.Deleted,
		"skipped":      report.Skipped,
		"dry_run":      opts.DryRun,
		"expired_only": opts.ExpiredOnly,
		"elapsed_ms":   elapsed.Milliseconds(),
	}).Info("cleanup_complete")
}
