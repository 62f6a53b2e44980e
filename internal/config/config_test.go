package config

import "testing"

func TestDefaultWatchesSage(t *testing.T) {
	cfg := Default()
	if cfg.Actors.Watched != "sage" {
		t.Fatalf("watched = %q", cfg.Actors.Watched)
	}
	if !cfg.Server.AllowActorHeader {
		t.Fatal("default should allow header auth for local use")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
actors:
  watched: clifton
notifications:
  telegram:
    token: tok
    chat_id: "123"
  webhooks:
    - url: https://example.com/hook
      secret: s
github:
  secret: gh
server:
  jwt_secret: jwt
`)
	cfg, err := FromYAML(data)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Actors.Watched != "clifton" {
		t.Fatalf("watched = %q", cfg.Actors.Watched)
	}
	if cfg.Notifications.Telegram.Token != "tok" || cfg.Notifications.Telegram.ChatID != "123" {
		t.Fatalf("telegram = %+v", cfg.Notifications.Telegram)
	}
	if len(cfg.Notifications.Webhooks) != 1 || cfg.Notifications.Webhooks[0].URL != "https://example.com/hook" {
		t.Fatalf("webhooks = %+v", cfg.Notifications.Webhooks)
	}
	if cfg.GitHub.Secret != "gh" || cfg.Server.JWTSecret != "jwt" {
		t.Fatalf("secrets not parsed: %+v", cfg)
	}
}

func TestFromYAMLDefaultsWatched(t *testing.T) {
	cfg, err := FromYAML([]byte(`server: {jwt_secret: x}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Actors.Watched != "sage" {
		t.Fatalf("watched = %q, want default sage", cfg.Actors.Watched)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []string{
		"actors: {watched: mallory}",
		"notifications: {telegram: {token: t}}",
		"notifications: {webhooks: [{secret: s}]}",
	}
	for _, src := range cases {
		if _, err := FromYAML([]byte(src)); err == nil {
			t.Fatalf("expected rejection of %q", src)
		}
	}
}
