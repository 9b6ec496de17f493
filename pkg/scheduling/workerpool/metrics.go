package workerpool

// recordActive moves the running-workers gauge by delta.
func (p *Pool) recordActive(delta float64) {
	if p.config.Metrics == nil {
		return
	}
	p.config.Metrics.WorkersActive.WithLabelValues(p.config.Name).Add(delta)
}

// recordCompletion updates the per-frame counters and the duration histogram.
func (p *Pool) recordCompletion(c Completion) {
	m := p.config.Metrics
	if m == nil {
		return
	}
	m.AnnotateDuration.WithLabelValues(p.config.Name).Observe(c.Duration.Seconds())
	if c.Failed() {
		m.FramesFailed.WithLabelValues(p.config.Name).Inc()
	} else {
		m.FramesAnnotated.WithLabelValues(p.config.Name).Inc()
	}
}
