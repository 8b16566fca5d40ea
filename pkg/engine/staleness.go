// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"time"

	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// Staleness thresholds in hours.
const (
	activeWindowHours          = 6
	interviewActiveWindowHours = 3
	interviewAbandonHours      = 6
	autoCompleteHours          = 12
	stalledHours               = 48
	trackingOnlyHours          = 12
)

// DefaultAbandonAfter is how long an untouched generator session may sit
// before it counts as abandoned at start. Configurable via
// sweeper.abandon_after.
const DefaultAbandonAfter = 24 * time.Hour

// autoCompleteProgress is the progress ratio past which an idle session
// is considered done enough to auto-complete.
const autoCompleteProgress = 0.75

// Verdict pairs a staleness class with the action the engine should take.
type Verdict struct {
	Class  types.StalenessClass
	Action types.RecommendedAction
}

// ClassifyStaleSession decides what an untouched session has become.
// outsideAttempts counts attempts the user recorded outside any session
// since the session started; a generator session whose only activity is
// outside attempts belongs to a tracking-only user.
func ClassifyStaleSession(session types.Session, outsideAttempts int, now time.Time) Verdict {
	return ClassifyStaleSessionAfter(session, outsideAttempts, now, DefaultAbandonAfter)
}

// ClassifyStaleSessionAfter is ClassifyStaleSession with a caller-chosen
// abandoned-at-start threshold.
func ClassifyStaleSessionAfter(session types.Session, outsideAttempts int, now time.Time, abandonAfter time.Duration) Verdict {
	if abandonAfter <= 0 {
		abandonAfter = DefaultAbandonAfter
	}
	class := classify(session, outsideAttempts, now, abandonAfter)
	return Verdict{Class: class, Action: actionFor(class)}
}

func classify(session types.Session, outsideAttempts int, now time.Time, abandonAfter time.Duration) types.StalenessClass {
	if session.Status == types.SessionCompleted {
		return types.StaleActive
	}

	staleHours := now.Sub(lastActivity(session)).Hours()
	attempts := len(session.Attempts)
	interview := session.SessionType == types.SessionTypeInterviewLike ||
		session.SessionType == types.SessionTypeFullInterview ||
		session.Origin == types.OriginInterview

	if interview {
		switch {
		case staleHours <= interviewActiveWindowHours:
			return types.StaleInterviewActive
		case staleHours <= interviewAbandonHours:
			return types.StaleInterviewStale
		case attempts == 0:
			return types.StaleInterviewAbandoned
		default:
			return types.StaleInterviewStale
		}
	}

	if staleHours <= activeWindowHours {
		if session.Origin == types.OriginTracking || session.SessionType == types.SessionTypeTracking {
			return types.StaleTrackingActive
		}
		return types.StaleActive
	}

	if session.Origin == types.OriginTracking || session.SessionType == types.SessionTypeTracking {
		return types.StaleTrackingStale
	}

	if session.Origin == types.OriginGenerator {
		switch {
		case staleHours > abandonAfter.Hours() && attempts == 0:
			return types.StaleAbandonedAtStart
		case staleHours > autoCompleteHours && session.ProgressRatio() >= autoCompleteProgress:
			return types.StaleAutoCompleteCandidate
		case staleHours > stalledHours && attempts > 0:
			return types.StaleStalledWithProgress
		case staleHours > trackingOnlyHours && attempts == 0 && outsideAttempts > 0:
			return types.StaleTrackingOnlyUser
		}
	}

	return types.StaleUnclear
}

func actionFor(class types.StalenessClass) types.RecommendedAction {
	switch class {
	case types.StaleAbandonedAtStart, types.StaleInterviewAbandoned:
		return types.ActionExpire
	case types.StaleAutoCompleteCandidate:
		return types.ActionAutoComplete
	case types.StaleTrackingStale:
		return types.ActionCreateNewTracking
	case types.StaleTrackingOnlyUser:
		return types.ActionRefreshGuidedSession
	case types.StaleStalledWithProgress, types.StaleInterviewStale:
		return types.ActionFlagForUserChoice
	default:
		return types.ActionNone
	}
}

// lastActivity falls back to the session date when no activity was ever
// recorded.
func lastActivity(session types.Session) time.Time {
	if !session.LastActivityTime.IsZero() {
		return session.LastActivityTime
	}
	return session.Date
}
