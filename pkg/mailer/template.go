package mailer

import (
	"fmt"
	"strings"
)

const TemplateWelcome = "onboarding_welcome"

// WelcomeMessage 引导完成后的欢迎邮件
func WelcomeMessage(to, name string) Message {
	greeting := "Hej"
	if name = strings.TrimSpace(name); name != "" {
		greeting = "Hej " + name
	}

	body := fmt.Sprintf("%s,\n\n"+
		"Tak fordi du har oprettet dig hos CoParent.\n"+
		"Din profil er klar, og du kan nu begynde at dokumentere samvær og aftaler.\n\n"+
		"Venlig hilsen\nCoParent\n", greeting)

	return Message{
		To:       to,
		Subject:  "Velkommen til CoParent",
		Body:     body,
		Template: TemplateWelcome,
	}
}
