// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

var classifyNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func staleSession(origin types.SessionOrigin, sessionType types.SessionType, hoursStale float64, attempts int, problems int) types.Session {
	s := types.Session{
		SessionID:        "s-1",
		Status:           types.SessionInProgress,
		Origin:           origin,
		SessionType:      sessionType,
		Date:             classifyNow.Add(-time.Duration((hoursStale + 1) * float64(time.Hour))),
		LastActivityTime: classifyNow.Add(-time.Duration(hoursStale * float64(time.Hour))),
	}
	for i := 0; i < problems; i++ {
		s.Problems = append(s.Problems, types.SessionProblem{
			Problem: types.Problem{LeetcodeID: i + 1},
		})
	}
	for i := 0; i < attempts; i++ {
		s.Attempts = append(s.Attempts, types.Attempt{
			AttemptID:  fmt.Sprintf("a-%d", i),
			LeetcodeID: i + 1,
			Success:    true,
		})
	}
	return s
}

func TestClassifyStaleSession_Table(t *testing.T) {
	tests := []struct {
		name       string
		session    types.Session
		outside    int
		wantClass  types.StalenessClass
		wantAction types.RecommendedAction
	}{
		{
			name: "completed is always active",
			session: func() types.Session {
				s := staleSession(types.OriginGenerator, types.SessionTypeStandard, 100, 0, 4)
				s.Status = types.SessionCompleted
				return s
			}(),
			wantClass:  types.StaleActive,
			wantAction: types.ActionNone,
		},
		{
			name:       "recent activity is active",
			session:    staleSession(types.OriginGenerator, types.SessionTypeStandard, 2, 1, 4),
			wantClass:  types.StaleActive,
			wantAction: types.ActionNone,
		},
		{
			name:       "interview within three hours",
			session:    staleSession(types.OriginInterview, types.SessionTypeInterviewLike, 2, 0, 4),
			wantClass:  types.StaleInterviewActive,
			wantAction: types.ActionNone,
		},
		{
			name:       "interview three to six hours with attempts",
			session:    staleSession(types.OriginInterview, types.SessionTypeInterviewLike, 4, 2, 4),
			wantClass:  types.StaleInterviewStale,
			wantAction: types.ActionFlagForUserChoice,
		},
		{
			name:       "interview three to six hours without attempts",
			session:    staleSession(types.OriginInterview, types.SessionTypeInterviewLike, 5, 0, 4),
			wantClass:  types.StaleInterviewStale,
			wantAction: types.ActionFlagForUserChoice,
		},
		{
			name:       "interview over six hours without attempts",
			session:    staleSession(types.OriginInterview, types.SessionTypeFullInterview, 8, 0, 4),
			wantClass:  types.StaleInterviewAbandoned,
			wantAction: types.ActionExpire,
		},
		{
			name:       "interview over six hours with attempts",
			session:    staleSession(types.OriginInterview, types.SessionTypeInterviewLike, 8, 2, 4),
			wantClass:  types.StaleInterviewStale,
			wantAction: types.ActionFlagForUserChoice,
		},
		{
			name:       "tracking within six hours",
			session:    staleSession(types.OriginTracking, types.SessionTypeTracking, 3, 1, 4),
			wantClass:  types.StaleTrackingActive,
			wantAction: types.ActionNone,
		},
		{
			name:       "tracking over six hours",
			session:    staleSession(types.OriginTracking, types.SessionTypeTracking, 8, 1, 4),
			wantClass:  types.StaleTrackingStale,
			wantAction: types.ActionCreateNewTracking,
		},
		{
			name:       "generator abandoned at start",
			session:    staleSession(types.OriginGenerator, types.SessionTypeStandard, 25, 0, 4),
			wantClass:  types.StaleAbandonedAtStart,
			wantAction: types.ActionExpire,
		},
		{
			name:       "generator auto-complete candidate",
			session:    staleSession(types.OriginGenerator, types.SessionTypeStandard, 13, 3, 4),
			wantClass:  types.StaleAutoCompleteCandidate,
			wantAction: types.ActionAutoComplete,
		},
		{
			name:       "generator stalled with progress",
			session:    staleSession(types.OriginGenerator, types.SessionTypeStandard, 49, 1, 4),
			wantClass:  types.StaleStalledWithProgress,
			wantAction: types.ActionFlagForUserChoice,
		},
		{
			name:       "generator tracking-only user",
			session:    staleSession(types.OriginGenerator, types.SessionTypeStandard, 13, 0, 4),
			outside:    3,
			wantClass:  types.StaleTrackingOnlyUser,
			wantAction: types.ActionRefreshGuidedSession,
		},
		{
			name:       "generator in the grey zone is unclear",
			session:    staleSession(types.OriginGenerator, types.SessionTypeStandard, 8, 1, 4),
			wantClass:  types.StaleUnclear,
			wantAction: types.ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := ClassifyStaleSession(tt.session, tt.outside, classifyNow)
			assert.Equal(t, tt.wantClass, verdict.Class)
			assert.Equal(t, tt.wantAction, verdict.Action)
		})
	}
}

func TestClassifyStaleSession_FallsBackToSessionDate(t *testing.T) {
	s := staleSession(types.OriginGenerator, types.SessionTypeStandard, 0, 0, 4)
	s.LastActivityTime = time.Time{}
	s.Date = classifyNow.Add(-25 * time.Hour)

	verdict := ClassifyStaleSession(s, 0, classifyNow)
	assert.Equal(t, types.StaleAbandonedAtStart, verdict.Class)
}

func TestClassifyStaleSessionAfter_CustomAbandonThreshold(t *testing.T) {
	// 10 idle hours, no attempts: unclear under the 24h default.
	s := staleSession(types.OriginGenerator, types.SessionTypeStandard, 10, 0, 4)

	v := ClassifyStaleSession(s, 0, classifyNow)
	assert.Equal(t, types.StaleUnclear, v.Class)
	assert.Equal(t, types.ActionNone, v.Action)

	v = ClassifyStaleSessionAfter(s, 0, classifyNow, 8*time.Hour)
	assert.Equal(t, types.StaleAbandonedAtStart, v.Class)
	assert.Equal(t, types.ActionExpire, v.Action)

	// Non-positive thresholds fall back to the default.
	v = ClassifyStaleSessionAfter(s, 0, classifyNow, 0)
	assert.Equal(t, types.StaleUnclear, v.Class)
}
