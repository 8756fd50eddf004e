package content

var guides = []Article{
	{
		Slug:        "private-domains",
		Title:       "Private domains for disposable addresses",
		Description: "Why shared temp-mail domains get blocked and how a private domain avoids it.",
		Author:      "tempinbox",
		Date:        "2026-10-24",
		Markdown: `Many sign-up forms keep a list of well known disposable mail domains and reject them outright.

## Why public domains get blocked

A shared domain is used by thousands of people at once. Once a site notices it, the whole domain lands on a blocklist.

## Using your own domain

1. Register a cheap, neutral sounding domain.
2. Point its MX records at a forwarding service with an API.
3. Enable catch-all delivery so *anything*@yourdomain receives mail.

> Keep the name generic. A domain that looks like a company mailbox passes most filters.
`,
	},
	{
		Slug:        "ai-signups",
		Title:       "Signing up for AI tools without your main address",
		Description: "Keep prompts and accounts on AI platforms separate from your identity.",
		Author:      "tempinbox",
		Date:        "2026-10-20",
		Markdown: `AI services ask for an email before the first prompt. A throwaway address keeps experiments separate from your real inbox.

## Tips

- Press **r** to refresh the inbox while waiting for the verification code.
- If a domain is rejected, press **n** for a new mailbox on a different domain.
- Do not use a disposable address for an account you need to recover later.
`,
	},
	{
		Slug:        "social-accounts",
		Title:       "Secondary social media accounts",
		Description: "Create test or hobby profiles without linking them to your main inbox.",
		Author:      "tempinbox",
		Date:        "2026-10-15",
		Markdown: `Social networks correlate accounts through the email address used to register them. A separate mailbox per profile breaks that link.

## What to expect

Verification codes usually arrive within a few seconds. The inbox refreshes automatically every ten seconds.

**Warning:** never use a temporary address for accounts that hold money or ads. Recovery will be impossible once the mailbox expires.
`,
	},
}

var posts = []Post{
	{
		Article: Article{
			Slug:        "disposable-email-guide",
			Title:       "A practical guide to disposable email",
			Description: "What a disposable address is, and when it is the right tool.",
			Author:      "tempinbox",
			Date:        "2026-10-28",
			Markdown: `Every newsletter, trial and Wi-Fi portal wants an email address. Each one is another copy of your identity in someone else's database.

## What is a disposable address?

It is a real, working mailbox created for one purpose and thrown away afterwards. Nothing ties it to you.

## When to use one

- **Spam control:** sign-ups that will sell your address never see the real one.
- **Breach containment:** if a small site leaks its users, your primary account is not part of it.
- **Trials:** evaluate a product before deciding whether it deserves your real address.
`,
		},
		Category: "Security",
		ReadTime: "6 min",
	},
	{
		Article: Article{
			Slug:        "qa-testing",
			Title:       "Disposable inboxes for QA and development",
			Description: "Testing sign-up and password-reset flows without a pile of real accounts.",
			Author:      "tempinbox",
			Date:        "2026-10-22",
			Markdown: `Sign-up, invite and password-reset flows all end in an email. Testing them by hand needs a fresh inbox every run.

## Workflow

1. Press **n** to get a new address.
2. Run the flow under test against it.
3. Open the message with **enter** and follow the link listed under *Links*.
4. Press **d** to delete the mailbox when done.

| Key | Action |
|-----|--------|
| r | refresh now |
| n | new mailbox |
| d | delete mailbox |
`,
		},
		Category: "Development",
		ReadTime: "5 min",
	},
	{
		Article: Article{
			Slug:        "phone-verification",
			Title:       "Why sites ask for more than an email",
			Description: "Phone and ID checks, and what a temporary address can and cannot do.",
			Author:      "tempinbox",
			Date:        "2026-10-18",
			Markdown: `More services now require a phone number in addition to an address. A phone number is a persistent identifier, which is exactly why they ask for it.

A temporary mailbox covers the email half of sign-up. It does not help with SMS checks.
`,
		},
		Category: "Privacy",
		ReadTime: "3 min",
	},
	{
		Article: Article{
			Slug:        "mailbox-lifetime",
			Title:       "How long does a temporary mailbox last?",
			Description: "Retention, expiry and what happens to your messages.",
			Author:      "tempinbox",
			Date:        "2026-10-10",
			Markdown: `Messages live only as long as the provider keeps them. tempinbox does not store message content locally; it only remembers which messages you have already seen.

When a session expires the client refreshes it automatically. If that fails while loading the inbox, a new mailbox is created for you.
`,
		},
		Category: "Tech",
		ReadTime: "2 min",
	},
}
