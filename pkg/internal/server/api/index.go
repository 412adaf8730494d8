package api

import (
	"git.solsynth.dev/hypernet/meeting/pkg/internal/server/exts"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/livekit/protocol/auth"
)

var (
	meetings    *services.MeetingManager
	webhookKeys auth.KeyProvider
)

func MapAPIs(app *fiber.App, baseURL string, manager *services.MeetingManager, secret string, keys auth.KeyProvider) {
	meetings = manager
	webhookKeys = keys

	api := app.Group(baseURL).Name("API")
	{
		api.Post("/webhooks/livekit", receiveProviderWebhook)

		channels := api.Group("/channels/:channelId").Use(exts.AuthMiddleware(secret)).Name("Meetings API")
		{
			channels.Get("/meetings", listMeetings)
			channels.Get("/meetings/active", getActiveMeeting)
			channels.Post("/meetings", startMeeting)
			channels.Post("/meetings/active/token", joinMeeting)
			channels.Delete("/meetings/active/me", leaveMeeting)
			channels.Delete("/meetings/active", endMeeting)
			channels.Delete("/meetings/active/participants/:accountId", kickParticipant)
		}
	}
}
