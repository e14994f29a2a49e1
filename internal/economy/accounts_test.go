package economy

import (
	"context"
	"errors"
	"testing"

	"github.com/tiker-app/tiker/internal/models"
)

func TestSignupAndAuthenticate(t *testing.T) {
	service, _, _ := newTestService(t)

	account, errSignup := service.Signup(context.Background(), "alice", "alice@example.com", "correct-horse")
	if errSignup != nil {
		t.Fatalf("signup: %v", errSignup)
	}
	if account.Tier != models.AccountTierBronze {
		t.Fatalf("tier = %v, want bronze at signup", account.Tier)
	}
	if account.TokenBalance != 0 {
		t.Fatalf("balance = %d, want 0 before verification", account.TokenBalance)
	}

	if _, errDup := service.Signup(context.Background(), "alice", "other@example.com", "pw"); !errors.Is(errDup, ErrConflict) {
		t.Fatalf("duplicate signup = %v, want ErrConflict", errDup)
	}

	authed, errAuth := service.Authenticate(context.Background(), "alice", "correct-horse")
	if errAuth != nil {
		t.Fatalf("authenticate: %v", errAuth)
	}
	if authed.ID != account.ID {
		t.Fatalf("authenticated id = %d, want %d", authed.ID, account.ID)
	}

	if _, errWrong := service.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(errWrong, ErrBadCredentials) {
		t.Fatalf("wrong password = %v, want ErrBadCredentials", errWrong)
	}
	if _, errUnknown := service.Authenticate(context.Background(), "nobody", "pw"); !errors.Is(errUnknown, ErrBadCredentials) {
		t.Fatalf("unknown user = %v, want ErrBadCredentials", errUnknown)
	}
}

func TestDisabledAccountCannotAuthenticate(t *testing.T) {
	service, _, _ := newTestService(t)

	account, errSignup := service.Signup(context.Background(), "alice", "", "correct-horse")
	if errSignup != nil {
		t.Fatalf("signup: %v", errSignup)
	}
	if errDisable := service.SetAccountDisabled(context.Background(), account.ID, true); errDisable != nil {
		t.Fatalf("disable: %v", errDisable)
	}
	if _, errAuth := service.Authenticate(context.Background(), "alice", "correct-horse"); !errors.Is(errAuth, ErrBadCredentials) {
		t.Fatalf("disabled login = %v, want ErrBadCredentials", errAuth)
	}

	if errEnable := service.SetAccountDisabled(context.Background(), account.ID, false); errEnable != nil {
		t.Fatalf("enable: %v", errEnable)
	}
	if _, errAuth := service.Authenticate(context.Background(), "alice", "correct-horse"); errAuth != nil {
		t.Fatalf("login after enable: %v", errAuth)
	}
}

func TestRegisterAndAuthenticateAgent(t *testing.T) {
	service, _, _ := newTestService(t)

	agent, key, errRegister := service.RegisterAgent(context.Background(), "helper", []string{"patterns"})
	if errRegister != nil {
		t.Fatalf("register: %v", errRegister)
	}
	if agent.Tier != models.AgentTierUnclaimed {
		t.Fatalf("tier = %v, want unclaimed at registration", agent.Tier)
	}
	if key == "" || agent.APIKeyHash == key {
		t.Fatalf("plaintext key must be returned and never stored")
	}

	authed, errAuth := service.AuthenticateAgent(context.Background(), key)
	if errAuth != nil {
		t.Fatalf("authenticate agent: %v", errAuth)
	}
	if authed.ID != agent.ID {
		t.Fatalf("authenticated id = %d, want %d", authed.ID, agent.ID)
	}

	if _, errBad := service.AuthenticateAgent(context.Background(), "tk-bogus"); !errors.Is(errBad, ErrBadCredentials) {
		t.Fatalf("bad key = %v, want ErrBadCredentials", errBad)
	}
}

func TestRotateAgentKeyOwnerOnly(t *testing.T) {
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "owner", models.AccountTierSilver, 0)
	other := createAccount(t, conn, "other", models.AccountTierSilver, 0)

	agent, oldKey, errRegister := service.RegisterAgent(context.Background(), "helper", nil)
	if errRegister != nil {
		t.Fatalf("register: %v", errRegister)
	}
	if errClaim := service.ClaimAgent(context.Background(), owner.ID, agent.ID); errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}

	if _, errStranger := service.RotateAgentKey(context.Background(), other.ID, agent.ID); !errors.Is(errStranger, ErrNotFound) {
		t.Fatalf("stranger rotate = %v, want ErrNotFound", errStranger)
	}

	newKey, errRotate := service.RotateAgentKey(context.Background(), owner.ID, agent.ID)
	if errRotate != nil {
		t.Fatalf("rotate: %v", errRotate)
	}
	if newKey == oldKey {
		t.Fatalf("rotation returned the old key")
	}
	if _, errOld := service.AuthenticateAgent(context.Background(), oldKey); !errors.Is(errOld, ErrBadCredentials) {
		t.Fatalf("old key = %v, want ErrBadCredentials after rotation", errOld)
	}
	if _, errNew := service.AuthenticateAgent(context.Background(), newKey); errNew != nil {
		t.Fatalf("new key: %v", errNew)
	}

	agents, errList := service.ListAgentsByOwner(context.Background(), owner.ID)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(agents) != 1 || agents[0].ID != agent.ID {
		t.Fatalf("owner agents = %v, want the claimed agent only", agents)
	}
}
