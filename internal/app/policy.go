package app

import "github.com/jeremyandrews/tag1bot/internal/domain"

// FilterIntent applies the karma policy to a single intent. The only rule is
// that authors cannot change their own karma, whether they write their ID,
// user name, display name or a Slack mention of themselves.
func FilterIntent(intent domain.Intent, author domain.UserIdentity) domain.FilterResult {
	if isSelf(intent.Subject, author) {
		return domain.FilterResult{Intent: intent, Reason: domain.RejectSelfKarma}
	}
	return domain.FilterResult{Intent: intent}
}

func isSelf(subject domain.Subject, author domain.UserIdentity) bool {
	candidates := []string{author.ID, author.Name, author.DisplayName}
	if author.ID != "" {
		candidates = append(candidates, "<@"+author.ID+">")
	}

	for _, c := range candidates {
		if k := subjectKey(c); k != "" && k == subject.Key {
			return true
		}
	}
	return false
}
