package authapi

func toMeResponse(id Identity) meResponse {
	return meResponse{
		PrincipalID:      id.Principal.ID,
		SessionExpiresAt: id.Session.ExpiresAt,
	}
}

func toPromptResponse(id Identity) promptResponse {
	return promptResponse{
		Authenticated:    true,
		PrincipalID:      id.Principal.ID,
		SessionExpiresAt: id.Session.ExpiresAt,
	}
}
