package api

import (
	"git.solsynth.dev/hypernet/meeting/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/livekit/protocol/webhook"
	"github.com/rs/zerolog/log"
)

const providerEventParticipantLeft = "participant_left"

func receiveProviderWebhook(c *fiber.Ctx) error {
	req, err := adaptor.ConvertRequest(c, false)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	event, err := webhook.ReceiveWebhookEvent(req, webhookKeys)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	switch event.GetEvent() {
	case providerEventParticipantLeft:
		room := event.GetRoom().GetName()
		account, err := services.ParseIdentity(event.GetParticipant().GetIdentity())
		if err != nil {
			log.Warn().Err(err).Str("room", room).Msg("Got a disconnect signal with unknown identity, skipped.")
			break
		}
		if err := meetings.ForceLeave(c.UserContext(), room, account); err != nil {
			return toHttpError(err)
		}
	default:
		log.Debug().Str("event", event.GetEvent()).Msg("Got a provider event, ignored.")
	}

	return c.SendStatus(fiber.StatusOK)
}
