package stats

import "github.com/stretchr/testify/mock"

// MockStatsUpdater is a StatsProvider double for portal component tests.
type MockStatsUpdater struct {
	mock.Mock
}

var _ StatsProvider = (*MockStatsUpdater)(nil)

// ExpectCounters accepts any registration and counter traffic, for tests
// that exercise a component without asserting on its metrics.
func (m *MockStatsUpdater) ExpectCounters() *MockStatsUpdater {
	m.On("RegisterMetric", mock.Anything).Return()
	m.On("Incr", mock.Anything).Return()
	m.On("Decr", mock.Anything).Return()
	return m
}

func (m *MockStatsUpdater) Incr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Decr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) RegisterMetric(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Run() {
	m.Called()
}
