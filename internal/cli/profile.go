package cli

// ProfileCmd groups the profile subcommands; bare "profile" shows it.
type ProfileCmd struct {
	Show ProfileShowCmd `cmd:"" default:"1" help:"Show your profile."`
	Set  ProfileSetCmd  `cmd:"" help:"Update profile fields."`
}

// ProfileShowCmd prints the profile, creating an empty one on first use.
type ProfileShowCmd struct{}

func (c *ProfileShowCmd) Run(ctx *Context) error {
	if _, err := ctx.requireLogin(); err != nil {
		return err
	}
	p, err := ctx.Profiles.Load(ctx.Ctx)
	if err != nil {
		return failed("Error loading profile: ", err)
	}
	printProfile(ctx.Out, p)
	return nil
}

// ProfileSetCmd changes only the given fields; the others keep their
// current values, since every save sends all three.
type ProfileSetCmd struct {
	Username  *string `help:"Username."`
	AvatarURL *string `name:"avatar-url" help:"Avatar URL."`
	Bio       *string `help:"Short bio."`
}

func (c *ProfileSetCmd) Run(ctx *Context) error {
	if _, err := ctx.requireLogin(); err != nil {
		return err
	}
	p, err := ctx.Profiles.Load(ctx.Ctx)
	if err != nil {
		return failed("Error loading profile: ", err)
	}

	if c.Username != nil {
		p.Username = *c.Username
	}
	if c.AvatarURL != nil {
		p.AvatarURL = *c.AvatarURL
	}
	if c.Bio != nil {
		p.Bio = *c.Bio
	}

	if err := ctx.Profiles.Save(ctx.Ctx, p); err != nil {
		return failed("Save failed: ", err)
	}
	printSuccess(ctx.Out, "Profile updated successfully!")
	printProfile(ctx.Out, p)
	return nil
}
