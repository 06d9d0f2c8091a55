package sdkbridge

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/wallet-bridge/internal/txcodec"
	"moff.io/wallet-bridge/pkg/errors"
	"moff.io/wallet-bridge/pkg/log"
)

const initSuccess = "success"

type step int

const (
	stepInit step = iota
	stepConnect
	stepSubAccount
	stepSend
)

var stepNames = [...]string{"init", "connect", "getSubAccount", "sendTransaction"}

func (s step) String() string { return stepNames[s] }

type pendingRequest struct {
	step step
	// phase to fall back to when dispatching fails
	restore Phase
	handle  func(requestID, payload string)
}

// Client drives the wallet host through initialize, connect, sub-account
// retrieval and transaction submission. Requests return as soon as they are
// dispatched; outcomes are applied when the host calls Resolve and are
// announced to listeners. Successful init and connect callbacks advance to the
// next step on their own.
type Client struct {
	bridge    Bridge
	listeners *listenerRegistry
	newID     func() string
	pendingTx atomic.Int64

	mu          sync.Mutex
	phase       Phase
	initialized bool
	addresses   []string
	subAccount  string
	pending     map[string]pendingRequest
	// latest dispatched request per step; older callbacks of that step are dropped
	latest map[step]string
}

// NewClient returns a client dispatching through bridge. Host callbacks must be
// routed to the returned client's Resolve.
func NewClient(bridge Bridge) *Client {
	return &Client{
		bridge:    bridge,
		listeners: newListenerRegistry(),
		newID:     uuid.NewString,
		pending:   make(map[string]pendingRequest),
		latest:    make(map[step]string),
	}
}

// Initialize sends the SDK configuration to the host. It is a no-op, logged at
// warn, once the SDK is initialized.
func (c *Client) Initialize(opts Options) error {
	if err := c.checkEnvironment("initialize SDK"); err != nil {
		return err
	}
	configJSON, err := opts.ConfigJSON()
	if err != nil {
		log.Error(err)
		return err
	}
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		log.Warn(ErrAlreadyInitialized)
		return nil
	}
	id := c.register(stepInit, Initializing, c.onInitResult)
	c.mu.Unlock()

	log.Infof("Initializing SDK with config: %s", configJSON)
	return c.dispatch(id, func() error {
		return c.bridge.Init(id, configJSON, opts.Network, opts.CustomRPCURL)
	})
}

// ConnectWallet asks the host to connect the user's wallet.
func (c *Client) ConnectWallet() error {
	if err := c.checkEnvironment("connect wallet"); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		err := errors.Wrap(ErrNotInitialized, "SDK not initialized, call Initialize first")
		log.Error(err)
		return err
	}
	id := c.register(stepConnect, Connecting, c.onWalletConnected)
	c.mu.Unlock()

	log.Info("Connecting wallet...")
	return c.dispatch(id, func() error { return c.bridge.Connect(id) })
}

// FetchSubAccount asks the host for the sub-account. Only an initialized SDK is
// required; the host decides whether a connected wallet is needed.
func (c *Client) FetchSubAccount() error {
	if err := c.checkEnvironment("get sub-account"); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		err := errors.Wrap(ErrNotInitialized, "SDK not initialized")
		log.Error(err)
		return err
	}
	id := c.register(stepSubAccount, FetchingSubAccount, c.onSubAccountRetrieved)
	c.mu.Unlock()

	log.Info("Retrieving sub-account...")
	return c.dispatch(id, func() error { return c.bridge.GetSubAccount(id) })
}

// SendTransaction submits calls as one batch signed by the sub-account and
// returns the request id carried by the matching TransactionSent event.
// chainIDOverride is omitted when empty.
func (c *Client) SendTransaction(calls []txcodec.Call, chainIDOverride string) (string, error) {
	if err := c.checkEnvironment("send transaction"); err != nil {
		return "", err
	}
	c.mu.Lock()
	// a reconnect or refetch in flight invalidates the stored sub-account until it settles
	ready := c.initialized && c.subAccount != "" && c.phase == SubAccountAvailable
	c.mu.Unlock()
	if !ready {
		err := errors.Wrap(ErrNotInitialized, "SDK not ready or sub-account not available")
		log.Error(err)
		return "", err
	}
	if len(calls) == 0 {
		log.Error(ErrEmptyCallBatch)
		return "", errors.WithStack(ErrEmptyCallBatch)
	}
	callsJSON, err := txcodec.MarshalCalls(calls)
	if err != nil {
		log.Error(err)
		return "", err
	}

	c.mu.Lock()
	id := c.register(stepSend, c.phase, c.onTransactionComplete)
	c.mu.Unlock()
	c.pendingTx.Inc()

	log.Infof("Sending transaction with calls: %s", callsJSON)
	if err := c.dispatch(id, func() error { return c.bridge.SendTransaction(id, callsJSON, chainIDOverride) }); err != nil {
		c.pendingTx.Dec()
		return "", err
	}
	return id, nil
}

// Resolve applies a host callback to the request it answers. Callbacks for
// unknown or superseded requests are logged and dropped.
func (c *Client) Resolve(requestID, payload string) {
	c.mu.Lock()
	req, ok := c.pending[requestID]
	if !ok {
		c.mu.Unlock()
		log.Warnf("dropping callback for unknown request %s", requestID)
		return
	}
	delete(c.pending, requestID)
	if req.step != stepSend {
		if c.latest[req.step] != requestID {
			c.mu.Unlock()
			log.Warnf("dropping %s callback for superseded request %s", req.step, requestID)
			return
		}
		delete(c.latest, req.step)
	}
	c.mu.Unlock()

	log.Debugf("%s callback %s: %q", req.step, requestID, payload)
	req.handle(requestID, payload)
}

func (c *Client) onInitResult(requestID, payload string) {
	if payload != initSuccess {
		c.mu.Lock()
		if !c.initialized {
			c.phase = Uninitialized
		}
		c.mu.Unlock()
		log.Error("SDK initialization failed!")
		c.listeners.emit(sdkReadyEvent, SdkReady{
			RequestID: requestID,
			Err:       errors.Wrapf(ErrBridgeCallbackFailure, "init returned %q", payload),
		})
		return
	}

	c.mu.Lock()
	c.initialized = true
	c.phase = Ready
	c.mu.Unlock()
	log.Info("SDK initialized successfully!")
	c.listeners.emit(sdkReadyEvent, SdkReady{RequestID: requestID, Success: true})

	if err := c.ConnectWallet(); err != nil {
		log.Errorf("auto connect after init: %v", err)
	}
}

func (c *Client) onWalletConnected(requestID, payload string) {
	addresses, err := parseAddresses(payload)
	if err != nil {
		c.mu.Lock()
		c.addresses = []string{}
		c.subAccount = ""
		c.phase = Ready
		c.mu.Unlock()
		log.Errorf("Wallet connection failed: %v", err)
		c.listeners.emit(walletReadyEvent, WalletReady{RequestID: requestID, Addresses: []string{}, Err: err})
		return
	}

	c.mu.Lock()
	c.addresses = addresses
	c.phase = Connected
	c.mu.Unlock()
	log.Infof("Wallet connected! Addresses: %s", strings.Join(addresses, ", "))
	c.listeners.emit(walletReadyEvent, WalletReady{RequestID: requestID, Addresses: copyStrings(addresses)})

	if err := c.FetchSubAccount(); err != nil {
		log.Errorf("auto fetch sub-account after connect: %v", err)
	}
}

func (c *Client) onSubAccountRetrieved(requestID, payload string) {
	address := strings.TrimSpace(payload)
	if address == "" {
		c.mu.Lock()
		c.subAccount = ""
		if len(c.addresses) > 0 {
			c.phase = Connected
		} else {
			c.phase = Ready
		}
		c.mu.Unlock()
		log.Error("Sub-account retrieval failed!")
		c.listeners.emit(subAccountReadyEvent, SubAccountReady{
			RequestID: requestID,
			Err:       errors.Wrap(ErrBridgeCallbackFailure, "empty sub-account"),
		})
		return
	}

	c.mu.Lock()
	c.subAccount = address
	c.phase = SubAccountAvailable
	c.mu.Unlock()
	log.Infof("Sub-account retrieved: %s", address)
	c.listeners.emit(subAccountReadyEvent, SubAccountReady{RequestID: requestID, Address: address})
}

func (c *Client) onTransactionComplete(requestID, payload string) {
	c.pendingTx.Dec()
	hash := strings.TrimSpace(payload)
	if hash == "" {
		log.Error("Transaction failed!")
		c.listeners.emit(transactionSentEvent, TransactionSent{
			RequestID: requestID,
			Err:       errors.Wrap(ErrBridgeCallbackFailure, "empty transaction hash"),
		})
		return
	}
	log.Infof("Transaction successful! Hash: %s", hash)
	c.listeners.emit(transactionSentEvent, TransactionSent{RequestID: requestID, Hash: hash})
}

// register records a continuation for a new request and moves to phase.
// Callers hold c.mu.
func (c *Client) register(s step, phase Phase, handle func(requestID, payload string)) string {
	id := c.newID()
	c.pending[id] = pendingRequest{step: s, restore: c.phase, handle: handle}
	if s != stepSend {
		c.latest[s] = id
	}
	c.phase = phase
	return id
}

// dispatch hands a registered request to the host, forgetting it again when
// the host refuses it.
func (c *Client) dispatch(requestID string, send func() error) error {
	err := send()
	if err == nil {
		return nil
	}
	c.mu.Lock()
	if req, ok := c.pending[requestID]; ok {
		delete(c.pending, requestID)
		if req.step != stepSend && c.latest[req.step] == requestID {
			delete(c.latest, req.step)
			c.phase = req.restore
		}
	}
	c.mu.Unlock()
	err = errors.Wrapf(err, "dispatch request %s", requestID)
	log.Error(err)
	return err
}

func (c *Client) checkEnvironment(op string) error {
	if c.bridge != nil && c.bridge.Available() {
		return nil
	}
	err := errors.Wrapf(ErrEnvironmentUnsupported, "cannot %s", op)
	log.Error(err)
	return err
}

func parseAddresses(payload string) ([]string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.Wrap(ErrBridgeCallbackFailure, "empty address list")
	}
	if !gjson.Valid(payload) {
		return nil, errors.Wrap(ErrBridgeCallbackFailure, "unparseable address list")
	}
	parsed := gjson.Parse(payload)
	if !parsed.IsArray() {
		return nil, errors.Wrap(ErrBridgeCallbackFailure, "address list is not an array")
	}
	items := parsed.Array()
	if len(items) == 0 {
		return nil, errors.Wrap(ErrBridgeCallbackFailure, "no addresses returned")
	}
	addresses := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String || !txcodec.IsAddress(item.String()) {
			return nil, errors.Wrapf(ErrBridgeCallbackFailure, "malformed address %s", item.Raw)
		}
		addresses = append(addresses, item.String())
	}
	return addresses, nil
}

func (c *Client) OnSdkReady(fn func(SdkReady)) Subscription {
	return c.listeners.add(sdkReadyEvent, func(e interface{}) { fn(e.(SdkReady)) })
}

func (c *Client) OnWalletReady(fn func(WalletReady)) Subscription {
	return c.listeners.add(walletReadyEvent, func(e interface{}) { fn(e.(WalletReady)) })
}

func (c *Client) OnSubAccountReady(fn func(SubAccountReady)) Subscription {
	return c.listeners.add(subAccountReadyEvent, func(e interface{}) { fn(e.(SubAccountReady)) })
}

func (c *Client) OnTransactionSent(fn func(TransactionSent)) Subscription {
	return c.listeners.add(transactionSentEvent, func(e interface{}) { fn(e.(TransactionSent)) })
}

func (c *Client) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// ConnectedAddresses returns a copy of the last connected address list.
func (c *Client) ConnectedAddresses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyStrings(c.addresses)
}

func (c *Client) SubAccountAddress() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subAccount, c.subAccount != ""
}

// CurrentNetwork asks the host for its network description. ok is false before
// initialization or when no host is attached.
func (c *Client) CurrentNetwork() (string, bool) {
	if !c.IsInitialized() || c.bridge == nil || !c.bridge.Available() {
		return "", false
	}
	return c.bridge.CurrentNetwork()
}

func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// PendingTransactions is the number of sends still waiting for a host callback.
func (c *Client) PendingTransactions() int64 {
	return c.pendingTx.Load()
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
