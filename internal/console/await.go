package console

import (
	"context"

	"moff.io/wallet-bridge/internal/sdkbridge"
	"moff.io/wallet-bridge/pkg/errors"
)

// matcher inspects one notification; done stops the wait with err.
type matcher func(e interface{}) (done bool, err error)

func (c *Console) await(ctx context.Context, step string, match matcher) error {
	for {
		select {
		case e := <-c.events:
			if done, err := match(e); done {
				return err
			}
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "wait for %s", step)
		}
	}
}

func failedEarlier(e interface{}) (bool, error) {
	switch ev := e.(type) {
	case sdkbridge.SdkReady:
		if !ev.Success {
			return true, ev.Err
		}
	case sdkbridge.WalletReady:
		if len(ev.Addresses) == 0 {
			return true, ev.Err
		}
	}
	return false, nil
}

// AwaitSdkReady waits for the init callback.
func (c *Console) AwaitSdkReady(ctx context.Context) error {
	return c.await(ctx, "sdk init", func(e interface{}) (bool, error) {
		if ev, ok := e.(sdkbridge.SdkReady); ok {
			return true, ev.Err
		}
		return false, nil
	})
}

// AwaitWallet waits for the connect callback, or an earlier failure.
func (c *Console) AwaitWallet(ctx context.Context) ([]string, error) {
	var addresses []string
	err := c.await(ctx, "wallet connection", func(e interface{}) (bool, error) {
		if ev, ok := e.(sdkbridge.WalletReady); ok && len(ev.Addresses) > 0 {
			addresses = ev.Addresses
			return true, nil
		}
		return failedEarlier(e)
	})
	return addresses, err
}

// AwaitSubAccount waits for the sub-account callback, or an earlier failure.
func (c *Console) AwaitSubAccount(ctx context.Context) (string, error) {
	var address string
	err := c.await(ctx, "sub-account", func(e interface{}) (bool, error) {
		if ev, ok := e.(sdkbridge.SubAccountReady); ok {
			address = ev.Address
			return true, ev.Err
		}
		return failedEarlier(e)
	})
	return address, err
}

// AwaitTransaction waits for the callback of the send identified by requestID.
func (c *Console) AwaitTransaction(ctx context.Context, requestID string) (string, error) {
	var hash string
	err := c.await(ctx, "transaction "+requestID, func(e interface{}) (bool, error) {
		if ev, ok := e.(sdkbridge.TransactionSent); ok && ev.RequestID == requestID {
			hash = ev.Hash
			return true, ev.Err
		}
		return false, nil
	})
	return hash, err
}
