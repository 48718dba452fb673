package analysis

// quality is the classifier's verdict on a sanitized stream.
type quality struct {
	tier       Tier
	confidence float64
	present    map[Channel]bool
	coverage   map[Channel]float64
	density    float64 // samples per minute
	gapFrac    float64 // share of the duration spent inside gaps
	largeGap   bool
}

// tierCap bounds the confidence a tier may report.
func tierCap(t Tier) float64 {
	switch t {
	case Tier2:
		return 0.85
	case Tier3:
		return 0.6
	default:
		return 1
	}
}

// classify decides which channels are usable, the analysis tier and the
// overall confidence. Distance presence is checked by the caller.
func classify(samples []StreamSample, meta *ChannelMetadata, th Thresholds) quality {
	q := quality{
		present:  map[Channel]bool{},
		coverage: map[Channel]float64{},
	}
	n := len(samples)
	if n == 0 {
		q.tier = Tier3
		return q
	}

	var hr, cad, alt int
	for _, s := range samples {
		if s.HR != nil && *s.HR >= th.MinValidHR && *s.HR <= th.MaxValidHR {
			hr++
		}
		if s.CadenceSPM != nil {
			cad++
		}
		if s.AltitudeM != nil || s.Grade != nil {
			alt++
		}
	}
	q.coverage[ChannelGPS] = 1
	q.coverage[ChannelHR] = float64(hr) / float64(n)
	q.coverage[ChannelCadence] = float64(cad) / float64(n)
	q.coverage[ChannelAltitude] = float64(alt) / float64(n)

	// Metadata can veto a channel but never invent one.
	q.present[ChannelGPS] = samples[n-1].DistanceM > samples[0].DistanceM
	q.present[ChannelHR] = q.coverage[ChannelHR] >= th.MinChannelCoverage && (meta == nil || meta.HR)
	q.present[ChannelCadence] = q.coverage[ChannelCadence] >= th.MinChannelCoverage && (meta == nil || meta.Cadence)
	q.present[ChannelAltitude] = q.coverage[ChannelAltitude] >= th.MinChannelCoverage && (meta == nil || meta.Altitude)

	duration := samples[n-1].TimeS - samples[0].TimeS
	if duration > 0 {
		q.density = float64(n-1) / (duration / 60)
	}

	var gapTime float64
	for i := 1; i < n; i++ {
		dt := samples[i].TimeS - samples[i-1].TimeS
		dd := samples[i].DistanceM - samples[i-1].DistanceM
		if dt > th.MaxGapS || dd/dt > th.MaxPlausibleSpeedMPS {
			gapTime += dt
			q.largeGap = true
		}
	}
	if duration > 0 {
		q.gapFrac = gapTime / duration
	}

	switch {
	case q.present[ChannelHR] && q.present[ChannelCadence] &&
		q.density >= th.MinSamplesPerMinute && !q.largeGap:
		q.tier = Tier1
	case q.present[ChannelHR] || q.present[ChannelCadence]:
		q.tier = Tier2
	default:
		q.tier = Tier3
	}

	completeness := 0.4 * (1 - q.gapFrac)
	if q.present[ChannelHR] {
		completeness += 0.35 * q.coverage[ChannelHR]
	}
	if q.present[ChannelCadence] {
		completeness += 0.25 * q.coverage[ChannelCadence]
	}
	densityScore := 0.0
	if th.TargetSamplesPerMinute > 0 {
		densityScore = clamp(q.density/th.TargetSamplesPerMinute, 0, 1)
	}
	conf := 0.7*completeness + 0.3*densityScore
	if meta != nil && meta.GPSSignalLoss {
		conf *= th.SignalLossConfidenceMul
	}
	if !isFinite(conf) {
		conf = 0
	}
	q.confidence = clamp(conf, 0, tierCap(q.tier))
	return q
}

// channelLists splits the channels into present and missing. Only core
// channels are ever reported missing; altitude is a bonus.
func (q quality) channelLists() (present, missing []Channel) {
	present = []Channel{}
	missing = []Channel{}
	for _, c := range coreChannels {
		if q.present[c] {
			present = append(present, c)
		} else {
			missing = append(missing, c)
		}
	}
	if q.present[ChannelAltitude] {
		present = append(present, ChannelAltitude)
	}
	return present, missing
}
