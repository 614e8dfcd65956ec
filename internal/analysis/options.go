package analysis

// Options controls analysis thresholds and output caps.
type Options struct {
	// Spike detection: |z| threshold over bucketed sums and the minimum number of buckets.
	ZThreshold   float64
	MinSeriesLen int
	// IQR outliers: fence multiplier, minimum sample size, columns scanned and rows kept per column.
	IQRMultiplier        float64
	MinOutlierSample     int
	MaxOutlierColumns    int
	MaxOutliersPerColumn int
	MaxAnomalies         int

	// Correlations kept in the profile.
	CorrThreshold   float64
	MaxCorrelations int

	MaxCharts   int
	MaxPoints   int
	HistBins    int
	ScatterSeed int64
	PreviewRows int
}

// DefaultOptions returns the thresholds used by the dashboard.
func DefaultOptions() Options {
	return Options{
		ZThreshold:           3.0,
		MinSeriesLen:         10,
		IQRMultiplier:        3.0,
		MinOutlierSample:     50,
		MaxOutlierColumns:    6,
		MaxOutliersPerColumn: 10,
		MaxAnomalies:         50,
		CorrThreshold:        0.6,
		MaxCorrelations:      10,
		MaxCharts:            14,
		MaxPoints:            5000,
		HistBins:             20,
		ScatterSeed:          7,
		PreviewRows:          50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ZThreshold <= 0 {
		o.ZThreshold = d.ZThreshold
	}
	if o.MinSeriesLen <= 0 {
		o.MinSeriesLen = d.MinSeriesLen
	}
	if o.IQRMultiplier <= 0 {
		o.IQRMultiplier = d.IQRMultiplier
	}
	if o.MinOutlierSample <= 0 {
		o.MinOutlierSample = d.MinOutlierSample
	}
	if o.MaxOutlierColumns <= 0 {
		o.MaxOutlierColumns = d.MaxOutlierColumns
	}
	if o.MaxOutliersPerColumn <= 0 {
		o.MaxOutliersPerColumn = d.MaxOutliersPerColumn
	}
	if o.MaxAnomalies <= 0 {
		o.MaxAnomalies = d.MaxAnomalies
	}
	if o.CorrThreshold <= 0 {
		o.CorrThreshold = d.CorrThreshold
	}
	if o.MaxCorrelations <= 0 {
		o.MaxCorrelations = d.MaxCorrelations
	}
	if o.MaxCharts <= 0 {
		o.MaxCharts = d.MaxCharts
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = d.MaxPoints
	}
	if o.HistBins <= 0 {
		o.HistBins = d.HistBins
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = d.PreviewRows
	}
	return o
}
