package port

// Metrics 业务指标上报
type Metrics interface {
	RefreshDone(venue string, err error)
	AlertRaised(kind string)
	LegFinished(venue, action, state string)
}

// NopMetrics 不上报任何指标
type NopMetrics struct{}

func (NopMetrics) RefreshDone(string, error)          {}
func (NopMetrics) AlertRaised(string)                 {}
func (NopMetrics) LegFinished(string, string, string) {}
