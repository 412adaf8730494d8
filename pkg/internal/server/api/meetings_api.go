package api

import (
	"git.solsynth.dev/hypernet/meeting/pkg/internal/server/exts"
	"github.com/gofiber/fiber/v2"
)

func listMeetings(c *fiber.Ctx) error {
	take := c.QueryInt("take", 0)
	offset := c.QueryInt("offset", 0)
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}

	if items, err := meetings.ListMeetings(c.UserContext(), channelId, take, offset); err != nil {
		return toHttpError(err)
	} else {
		return c.JSON(items)
	}
}

func getActiveMeeting(c *fiber.Ctx) error {
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}

	meeting, err := meetings.GetActiveMeeting(c.UserContext(), channelId)
	if err != nil {
		return toHttpError(err)
	} else if meeting == nil {
		return fiber.NewError(fiber.StatusNotFound, "this channel has no ongoing meeting")
	}
	return c.JSON(meeting)
}

func startMeeting(c *fiber.Ctx) error {
	user, err := exts.EnsureAuthenticated(c)
	if err != nil {
		return err
	}
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}

	var data struct {
		Title string `json:"title" validate:"max=256"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	meeting, err := meetings.StartMeeting(c.UserContext(), channelId, user, data.Title)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(meeting)
}

func joinMeeting(c *fiber.Ctx) error {
	user, err := exts.EnsureAuthenticated(c)
	if err != nil {
		return err
	}
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}

	credential, err := meetings.JoinMeeting(c.UserContext(), channelId, user)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(credential)
}

func leaveMeeting(c *fiber.Ctx) error {
	user, err := exts.EnsureAuthenticated(c)
	if err != nil {
		return err
	}
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}

	ended, err := meetings.LeaveMeeting(c.UserContext(), channelId, user)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"ended": ended})
}

func endMeeting(c *fiber.Ctx) error {
	user, err := exts.EnsureAuthenticated(c)
	if err != nil {
		return err
	}
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}

	if err := meetings.EndMeeting(c.UserContext(), channelId, user); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func kickParticipant(c *fiber.Ctx) error {
	user, err := exts.EnsureAuthenticated(c)
	if err != nil {
		return err
	}
	channelId, err := getChannelParam(c)
	if err != nil {
		return err
	}
	target, err := c.ParamsInt("accountId", 0)
	if err != nil || target <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid account id")
	}

	ended, err := meetings.KickParticipant(c.UserContext(), channelId, user, uint(target))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"ended": ended})
}
