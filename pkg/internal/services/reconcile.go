package services

import (
	"context"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ReconcilePresence drops participants that are recorded present but never
// showed up at the provider within the grace period, e.g. a token that was
// minted and never used, or a disconnect webhook that got lost.
func (v *MeetingManager) ReconcilePresence(ctx context.Context) (int, error) {
	meetings, err := v.repo.ListActiveMeetings(ctx)
	if err != nil {
		return 0, err
	}

	deadline := v.now().Add(-v.config.PresenceGrace)

	var dropped int
	for _, meeting := range meetings {
		identities, err := v.provider.ListParticipants(ctx, meeting.ExternalRoomName)
		if err != nil {
			log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to list participants at provider side, skipped.")
			continue
		}
		connected := lo.SliceToMap(identities, func(item string) (string, struct{}) {
			return item, struct{}{}
		})

		present, err := v.repo.ListPresentParticipants(ctx, meeting.ID)
		if err != nil {
			return dropped, err
		}
		stale := lo.Filter(present, func(item models.MeetingParticipant, _ int) bool {
			if item.JoinedAt.After(deadline) {
				return false
			}
			_, ok := connected[FormatIdentity(item.AccountID)]
			return !ok
		})

		for _, participant := range stale {
			if err := v.ForceLeave(ctx, meeting.ExternalRoomName, participant.AccountID); err != nil {
				return dropped, err
			}
			dropped++
		}
	}

	return dropped, nil
}

func (v *MeetingManager) DoAutoPresenceReconcile() {
	log.Debug().Msg("Now reconciling meeting presence with provider...")
	if count, err := v.ReconcilePresence(context.Background()); err != nil {
		log.Error().Err(err).Msg("An error occurred when reconciling meeting presence...")
	} else {
		log.Debug().Int("dropped", count).Msg("Reconcile meeting presence accomplished.")
	}
}
