package flowdiff

import (
	"context"
	"runtime"
	"sync"

	"github.com/jward/flowdiff/internal/symbol"
)

// fileResult carries one file's extraction output back to the merge phase.
type fileResult struct {
	index int
	table *symbol.Table
	diags []symbol.Diagnostic
}

// analyzeFilesParallel extracts files using a three-phase pipeline:
//
//	Phase A (serial):   pair each path with its analyzer.
//	Phase B (parallel): parse and extract via worker pool.
//	Phase C (serial):   collect tables and diagnostics in input order.
//
// Extraction shares no mutable state between files, so the fan-out needs no
// coordination beyond the channels; ordering is restored in phase C so that
// merge errors and diagnostics are deterministic.
func (e *Engine) analyzeFilesParallel(ctx context.Context, paths []string) ([]*symbol.Table, []symbol.Diagnostic) {
	type workItem struct {
		index int
		path  string
	}

	// ---- Phase A: pair paths with analyzers ----
	var items []workItem
	for _, path := range paths {
		if e.registry.ForFile(path) == nil {
			continue
		}
		items = append(items, workItem{index: len(items), path: path})
	}
	if len(items) == 0 {
		return nil, nil
	}

	// ---- Phase B: parallel extraction ----
	numWorkers := min(runtime.NumCPU(), len(items))

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	resultCh := make(chan fileResult, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				analyzer := e.registry.ForFile(item.path)
				table, diags := analyzer.BuildSymbolTable(ctx, item.path)
				resultCh <- fileResult{index: item.index, table: table, diags: diags}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: serial collection in input order ----
	ordered := make([]fileResult, len(items))
	for res := range resultCh {
		ordered[res.index] = res
	}

	tables := make([]*symbol.Table, 0, len(ordered))
	var diags []symbol.Diagnostic
	for _, res := range ordered {
		if res.table != nil {
			tables = append(tables, res.table)
		}
		diags = append(diags, res.diags...)
	}
	return tables, diags
}
