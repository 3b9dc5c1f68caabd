package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
)

// ExtractionConfig parameterises an ExtractionService.
type ExtractionConfig struct {
	// ByteOrder of the image, nil to detect.
	ByteOrder binary.ByteOrder

	// EraseBlockSize, zero to detect from clean marker spacing.
	EraseBlockSize int64

	Workers        int
	MaxFileSize    uint64
	MaxTotalSize   uint64
	RecoverOrphans bool
	OrphanDir      string

	// Hooks are attached to the diagnostics collector of every run.
	Hooks []diagnostics.Hook

	Logger *slog.Logger
}

// ScanResult is the output of pass one.
type ScanResult struct {
	Table              *InodeTable
	Stats              nodes.ScanStats
	ByteOrder          binary.ByteOrder
	EraseBlockSize     int64
	EraseBlockDetected bool
	Diagnostics        *diagnostics.Collector
}

// ExtractionResult is the reconstructed filesystem.
type ExtractionResult struct {
	Entries            []Entry
	Inodes             map[uint32]*Inode
	Tree               *DirectoryTree
	Stats              nodes.ScanStats
	ByteOrder          binary.ByteOrder
	EraseBlockSize     int64
	EraseBlockDetected bool
	Diagnostics        []diagnostics.Diagnostic
	Duration           time.Duration
}

// PartialCount returns the number of entries with unrecovered data.
func (r *ExtractionResult) PartialCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Partial {
			n++
		}
	}
	return n
}

// ExtractionService runs the scan, resolve and tree passes over an image.
type ExtractionService struct {
	config ExtractionConfig
	logger *slog.Logger
}

// NewExtractionService creates an extraction service.
func NewExtractionService(config ExtractionConfig) *ExtractionService {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.OrphanDir == "" {
		config.OrphanDir = DefaultOrphanDir
	}
	return &ExtractionService{config: config, logger: logger}
}

// Scan runs pass one: it finds and decodes every node of buf and groups the
// results into an InodeTable. It never fails; problems are diagnostics.
func (s *ExtractionService) Scan(buf []byte) *ScanResult {
	diag := diagnostics.NewCollector(s.config.Hooks...)
	return s.scan(buf, diag)
}

func (s *ExtractionService) scan(buf []byte, diag *diagnostics.Collector) *ScanResult {
	order := s.config.ByteOrder
	if order == nil {
		detected, err := nodes.DetectByteOrder(buf)
		if err != nil {
			s.logger.Warn("no valid node header found, assuming little-endian", "size", len(buf))
			detected = binary.LittleEndian
		}
		order = detected
	}

	ebs, detected := s.config.EraseBlockSize, false
	if ebs <= 0 {
		ebs, detected = nodes.DetectEraseBlockSize(buf, order)
		if !detected {
			ebs = int64(len(buf))
			diag.Recordf(diagnostics.EraseBlockUndetected, diagnostics.NoOffset, 0,
				"erase block size not detected; treating the image as one block")
		}
	}
	s.logger.Debug("scanning image",
		"size", len(buf),
		"byte_order", nodes.ByteOrderName(order),
		"erase_block_size", ebs,
		"erase_block_detected", detected)

	scanner := nodes.NewNodeScanner(buf, nodes.ScannerConfig{
		ByteOrder:      order,
		EraseBlockSize: ebs,
		Diagnostics:    diag,
	})

	table := NewInodeTable()
	for scanner.Next() {
		n := nodes.DecodeNode(scanner.Node(), order)
		if ig, ok := n.(*nodes.IgnoredNode); ok {
			if derr, ok := ig.Reason.(*diagnostics.Error); ok {
				d := derr.Diagnostic
				d.Message = derr.Err.Error()
				diag.Record(d)
			} else {
				diag.Recordf(diagnostics.StructuralInvalid, ig.NodeOffset, 0, "%v", ig.Reason)
			}
		}
		table.Add(n)
	}

	return &ScanResult{
		Table:              table,
		Stats:              scanner.Stats(),
		ByteOrder:          order,
		EraseBlockSize:     ebs,
		EraseBlockDetected: detected,
		Diagnostics:        diag,
	}
}

// Extract runs both passes over buf. The only error is cancellation of ctx.
func (s *ExtractionService) Extract(ctx context.Context, buf []byte) (*ExtractionResult, error) {
	start := time.Now()
	diag := diagnostics.NewCollector(s.config.Hooks...)

	scan := s.scan(buf, diag)
	s.logger.Debug("scan complete",
		"inodes", len(scan.Table.Inodes),
		"dirents", len(scan.Table.Dirents),
		"ignored", len(scan.Table.Ignored))

	resolver := NewFragmentResolver(ResolverConfig{
		Workers:     s.config.Workers,
		MaxFileSize:  s.config.MaxFileSize,
		MaxTotalSize: s.config.MaxTotalSize,
		ByteOrder:    scan.ByteOrder,
		Diagnostics:  diag,
	}, NewCompressionService())

	inodes, err := resolver.Resolve(ctx, scan.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve inodes: %w", err)
	}

	tree := BuildDirectoryTree(scan.Table.Dirents, diag)
	entries := tree.Materialize(inodes, MaterializeOptions{
		RecoverOrphans: s.config.RecoverOrphans,
		OrphanDir:      s.config.OrphanDir,
	})

	result := &ExtractionResult{
		Entries:            entries,
		Inodes:             inodes,
		Tree:               tree,
		Stats:              scan.Stats,
		ByteOrder:          scan.ByteOrder,
		EraseBlockSize:     scan.EraseBlockSize,
		EraseBlockDetected: scan.EraseBlockDetected,
		Diagnostics:        diag.Diagnostics(),
		Duration:           time.Since(start),
	}
	s.logger.Debug("extraction complete",
		"entries", len(entries),
		"diagnostics", len(result.Diagnostics),
		"duration", result.Duration)
	return result, nil
}
