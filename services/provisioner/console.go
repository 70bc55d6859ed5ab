package provisionsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/mailbox"
)

// consoleProvisioner keeps mailboxes in memory and logs every action. Used in debug mode and tests.
type consoleProvisioner struct {
	logger core.Logger

	mu        sync.Mutex
	mailboxes map[string]bool // {address: suspended}
	failNext  error
}

var _ mailbox.Provisioner = (*consoleProvisioner)(nil)

func NewConsoleProvisioner(logger core.Logger) *consoleProvisioner {
	return &consoleProvisioner{logger: logger, mailboxes: make(map[string]bool)}
}

// FailNext makes the next action fail with err.
func (p *consoleProvisioner) FailNext(err error) {
	p.mu.Lock()
	p.failNext = err
	p.mu.Unlock()
}

// Exists reports whether the mailbox exists, and whether it is suspended.
func (p *consoleProvisioner) Exists(address string) (exists, suspended bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	suspended, exists = p.mailboxes[address]
	return exists, suspended
}

func (p *consoleProvisioner) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}

func (p *consoleProvisioner) CreateMailbox(_ context.Context, acct mailbox.EmailAccount, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	if _, ok := p.mailboxes[acct.Address]; ok {
		return errors.New("mailbox already exists")
	}
	p.mailboxes[acct.Address] = false
	p.logger.Info("provisioner: mailbox created", map[string]interface{}{"address": acct.Address, "kind": acct.Kind})
	return nil
}

func (p *consoleProvisioner) SetPassword(_ context.Context, address, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	if _, ok := p.mailboxes[address]; !ok {
		return errors.New("no such mailbox")
	}
	p.logger.Info("provisioner: password set", map[string]interface{}{"address": address})
	return nil
}

func (p *consoleProvisioner) SetSuspended(_ context.Context, address string, suspended bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	if _, ok := p.mailboxes[address]; !ok {
		return errors.New("no such mailbox")
	}
	p.mailboxes[address] = suspended
	p.logger.Info("provisioner: mailbox suspension changed", map[string]interface{}{"address": address, "suspended": suspended})
	return nil
}

func (p *consoleProvisioner) DeleteMailbox(_ context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	delete(p.mailboxes, address)
	p.logger.Info("provisioner: mailbox deleted", map[string]interface{}{"address": address})
	return nil
}
