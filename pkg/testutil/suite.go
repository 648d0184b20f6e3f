package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// Suite is a testify suite base with a bounded context, a temp directory and
// a logger bound to the running test.
type Suite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *Suite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "blockpool-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *Suite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Logger returns a logger writing to the current test's output.
func (s *Suite) Logger() *zap.Logger {
	return TestLogger(s.T())
}

// CreateTempFile creates a file with content in the suite temp directory
func (s *Suite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o644))
	return path
}

// MemoryProfile captures heap statistics
type MemoryProfile struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	Mallocs    uint64
	Frees      uint64
}

// CaptureMemoryProfile captures current memory profile
func CaptureMemoryProfile() MemoryProfile {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryProfile{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		Mallocs:    m.Mallocs,
		Frees:      m.Frees,
	}
}

// MallocsSince returns the number of heap allocations since p was captured.
func (p MemoryProfile) MallocsSince() uint64 {
	return CaptureMemoryProfile().Mallocs - p.Mallocs
}
