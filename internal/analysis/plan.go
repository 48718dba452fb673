package analysis

// intervalTolerance absorbs one ambiguous boundary segment either way.
const intervalTolerance = 1

// comparePlan matches the detected structure against a prescribed workout.
// It returns nil when there is no plan.
func comparePlan(plan *PrescribedWorkout, samples []StreamSample, segments []Segment) *PlanComparison {
	if plan == nil {
		return nil
	}
	n := len(samples)
	totalS := samples[n-1].TimeS - samples[0].TimeS
	totalM := samples[n-1].DistanceM - samples[0].DistanceM

	pc := &PlanComparison{
		PlannedDurationMin:   plan.PlannedDurationMin,
		ActualDurationMin:    totalS / 60,
		PlannedDistanceKm:    plan.PlannedDistanceKm,
		ActualDistanceKm:     totalM / 1000,
		PlannedPaceSKm:       plan.PlannedPaceSKm,
		PlannedIntervalCount: plan.PlannedIntervalCount,
	}

	var workS, workM float64
	for _, s := range segments {
		if s.Type != SegmentWork {
			continue
		}
		pc.ActualIntervalCount++
		workS += s.DurationS
		workM += s.DistanceM
	}

	// Interval sessions are judged on the work bouts only
	if plan.PlannedIntervalCount != nil && *plan.PlannedIntervalCount > 0 && workM > 0 {
		pc.ActualPaceSKm = ptr(workS / (workM / 1000))
	} else if totalM > 0 {
		pc.ActualPaceSKm = ptr(totalS / (totalM / 1000))
	}

	if plan.PlannedDurationMin != nil {
		pc.DurationDeltaMin = ptr(pc.ActualDurationMin - *plan.PlannedDurationMin)
	}
	if plan.PlannedDistanceKm != nil {
		pc.DistanceDeltaKm = ptr(pc.ActualDistanceKm - *plan.PlannedDistanceKm)
	}
	if plan.PlannedPaceSKm != nil && pc.ActualPaceSKm != nil {
		pc.PaceDeltaSKm = ptr(*pc.ActualPaceSKm - *plan.PlannedPaceSKm)
	}
	if plan.PlannedIntervalCount != nil {
		diff := pc.ActualIntervalCount - *plan.PlannedIntervalCount
		match := diff >= -intervalTolerance && diff <= intervalTolerance
		pc.IntervalCountMatch = &match
	}
	return pc
}
