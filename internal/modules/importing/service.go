package importing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
	"github.com/aristath/folio-tracker/internal/modules/prices"
	"github.com/aristath/folio-tracker/internal/modules/universe"
)

// ErrImportInProgress signals that another import for the same account
// is still running. Concurrent imports are rejected, never queued
// silently.
var ErrImportInProgress = errors.New("an import for this account is already in progress")

// Service orchestrates the import pipeline: parse, resolve, aggregate,
// apply, update prices.
type Service struct {
	db         *sql.DB
	parser     *Parser
	resolver   *universe.Resolver
	aggregator *Aggregator
	applier    *Applier
	updater    *prices.Updater
	runs       *RunRepository
	log        zerolog.Logger

	mu     sync.Mutex
	active map[int64]bool
}

// NewService creates a new import service
func NewService(
	db *sql.DB,
	parser *Parser,
	resolver *universe.Resolver,
	aggregator *Aggregator,
	applier *Applier,
	updater *prices.Updater,
	runs *RunRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:         db,
		parser:     parser,
		resolver:   resolver,
		aggregator: aggregator,
		applier:    applier,
		updater:    updater,
		runs:       runs,
		log:        log.With().Str("service", "import").Logger(),
		active:     make(map[int64]bool),
	}
}

// tryLock marks an account's import as active. The whole per-account
// pipeline is non-reentrant; the aggregator and applier read-then-write
// the same rows across multiple statements.
func (s *Service) tryLock(accountID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[accountID] {
		return false
	}
	s.active[accountID] = true
	return true
}

func (s *Service) unlock(accountID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, accountID)
}

// Busy reports whether an import for the account is currently running
func (s *Service) Busy(accountID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[accountID]
}

// Run executes one import synchronously. Validation problems abort
// before any write; storage failures roll back in full; price-fetch
// failures are reported but never fail the import.
func (s *Service) Run(ctx context.Context, accountID int64, csvText string, sink ProgressSink) (*ImportResult, error) {
	if !s.tryLock(accountID) {
		return nil, ErrImportInProgress
	}
	defer s.unlock(accountID)

	started := time.Now()
	s.resolver.ClearCache()

	sink.Report(5, "Parsing CSV")
	transactions, stats, err := s.parser.Parse(csvText)
	if err != nil {
		return &ImportResult{Success: false, Message: err.Error()}, err
	}
	if len(transactions) == 0 {
		err := fmt.Errorf("no usable rows in CSV (%d rows dropped)", stats.Dropped())
		return &ImportResult{Success: false, Message: err.Error(), SkippedRows: stats.Dropped()}, err
	}

	sink.Report(15, "Resolving identifiers")
	if err := s.resolveIdentifiers(ctx, accountID, transactions, sink); err != nil {
		return &ImportResult{Success: false, Message: err.Error(), SkippedRows: stats.Dropped()}, err
	}

	sink.Report(45, "Aggregating positions")
	existing, err := s.loadExisting(accountID)
	if err != nil {
		return &ImportResult{Success: false, Message: err.Error(), SkippedRows: stats.Dropped()}, err
	}
	agg := s.aggregator.Aggregate(transactions, existing)

	sink.Report(60, "Applying changes")
	applied, err := s.applier.Apply(accountID, agg, existing)
	if err != nil {
		return &ImportResult{Success: false, Message: err.Error(), SkippedRows: stats.Dropped()}, err
	}

	sink.Report(75, "Updating prices")
	failedPrices := s.updater.UpdateBatch(ctx, touchedIdentifiers(agg))

	result := &ImportResult{
		Success:      true,
		Added:        applied.Added,
		Updated:      applied.Updated,
		Removed:      applied.Removed,
		FailedPrices: failedPrices,
		SkippedRows:  stats.Dropped(),
		Message: fmt.Sprintf("Imported %d transactions: %d added, %d updated, %d removed holdings",
			stats.Imported, len(applied.Added), len(applied.Updated), len(applied.Removed)),
	}

	sink.Report(100, result.Message)
	s.log.Info().
		Int64("account_id", accountID).
		Dur("elapsed", time.Since(started)).
		Int("added", len(applied.Added)).
		Int("updated", len(applied.Updated)).
		Int("removed", len(applied.Removed)).
		Int("failed_prices", len(failedPrices)).
		Msg("Import finished")

	return result, nil
}

// StartBackground launches an import in a background goroutine and
// returns the run id for progress polling. Progress lives in the
// import_runs table, so pollers don't depend on this process's memory.
func (s *Service) StartBackground(accountID int64, csvText string) (string, error) {
	runID := uuid.NewString()
	if err := s.runs.Create(runID, accountID); err != nil {
		return "", err
	}

	sink := NewDurableSink(s.runs, runID, s.log)

	go func() {
		result, err := s.Run(context.Background(), accountID, csvText, sink)
		if err != nil {
			if finishErr := s.runs.Finish(runID, RunStatusFailed, err.Error()); finishErr != nil {
				s.log.Error().Err(finishErr).Str("run_id", runID).Msg("Failed to record run failure")
			}
			return
		}
		if finishErr := s.runs.Finish(runID, RunStatusCompleted, result.Message); finishErr != nil {
			s.log.Error().Err(finishErr).Str("run_id", runID).Msg("Failed to record run completion")
		}
	}()

	return runID, nil
}

// resolveIdentifiers rewrites each transaction's identifier to its
// canonical form. Unique raw identifiers are resolved once; the
// resolver caches within the run anyway, but this keeps progress
// reporting proportional to distinct work.
func (s *Service) resolveIdentifiers(ctx context.Context, accountID int64, transactions []Transaction, sink ProgressSink) error {
	unique := make(map[string]string)
	for _, tx := range transactions {
		unique[tx.Identifier] = ""
	}

	raws := make([]string, 0, len(unique))
	for raw := range unique {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled: %w", err)
		}

		resolved, err := s.resolver.Resolve(ctx, accountID, raw)
		if err != nil {
			return fmt.Errorf("failed to resolve identifier %q: %w", raw, err)
		}
		unique[raw] = resolved

		sink.Report(15+30*(i+1)/len(raws), "Resolving identifiers")
	}

	for i := range transactions {
		transactions[i].Identifier = unique[transactions[i].Identifier]
	}

	return nil
}

// loadExisting reads the account's CSV-managed holdings (those with an
// identifier) keyed by display name. Custom manual entries without an
// identifier are never part of import reconciliation and so never
// slated for removal.
func (s *Service) loadExisting(accountID int64) (map[string]ExistingHolding, error) {
	rows, err := s.db.Query(`
		SELECT h.id, h.name, COALESCE(h.identifier, ''), h.identifier_manually_edited,
		       COALESCE(h.override_identifier, ''), h.portfolio_id,
		       l.holding_id, l.shares, l.override_shares, l.is_manually_edited, l.manual_edit_date, l.csv_modified_after_edit
		FROM holdings h
		LEFT JOIN share_lots l ON l.holding_id = h.id
		WHERE h.account_id = ? AND h.identifier IS NOT NULL`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing holdings: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]ExistingHolding)
	for rows.Next() {
		var (
			held       ExistingHolding
			name       string
			identifier string
			protected  int
			overrideID string

			lotID       sql.NullInt64
			shares      sql.NullFloat64
			override    sql.NullFloat64
			edited      sql.NullInt64
			editDate    sql.NullString
			csvModified sql.NullInt64
		)

		err := rows.Scan(&held.HoldingID, &name, &identifier, &protected, &overrideID, &held.PortfolioID,
			&lotID, &shares, &override, &edited, &editDate, &csvModified)
		if err != nil {
			return nil, fmt.Errorf("failed to scan existing holding: %w", err)
		}

		held.IdentifierProtected = protected != 0
		held.Identifier = identifier
		if held.IdentifierProtected && overrideID != "" {
			held.Identifier = overrideID
		}

		if lotID.Valid {
			lot := &domain.ShareLot{
				HoldingID:            lotID.Int64,
				Shares:               shares.Float64,
				IsManuallyEdited:     edited.Valid && edited.Int64 != 0,
				CSVModifiedAfterEdit: csvModified.Valid && csvModified.Int64 != 0,
			}
			if override.Valid {
				lot.OverrideShares = &override.Float64
			}
			if editDate.Valid {
				if t, err := time.Parse(time.RFC3339, editDate.String); err == nil {
					t = t.UTC()
					lot.ManualEditDate = &t
				}
			}
			held.Lot = lot
		}

		existing[name] = held
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating existing holdings: %w", err)
	}

	return existing, nil
}

// touchedIdentifiers collects the distinct identifiers whose prices the
// import should refresh
func touchedIdentifiers(agg *AggregationResult) []string {
	seen := make(map[string]struct{})
	for _, pos := range agg.Positions {
		if pos.Identifier != "" {
			seen[pos.Identifier] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
