package wsbridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"moff.io/wallet-bridge/internal/sdkbridge"
	"moff.io/wallet-bridge/internal/txcodec"
	"moff.io/wallet-bridge/pkg/errors"
)

type callback struct {
	id, payload string
}

type recordingResolver struct {
	got chan callback
}

func (r *recordingResolver) Resolve(id, payload string) {
	r.got <- callback{id: id, payload: payload}
}

func startServer(t *testing.T, queryTimeout time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer("127.0.0.1:0", "", queryTimeout)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		srv.Close()
	})
	return s, srv
}

func dialHost(t *testing.T, s *Server, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitAttached(ctx))
	return conn
}

func readRequest(t *testing.T, conn *websocket.Conn) gjson.Result {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return gjson.ParseBytes(data)
}

func reply(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func TestNoHostAttached(t *testing.T) {
	s, _ := startServer(t, time.Second)
	assert.False(t, s.Available())
	assert.True(t, errors.Is(s.Connect("id"), ErrNoHost))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, s.WaitAttached(ctx))
}

func TestInitRoundTrip(t *testing.T) {
	s, srv := startServer(t, time.Second)
	resolver := &recordingResolver{got: make(chan callback, 1)}
	s.SetResolver(resolver)
	conn := dialHost(t, s, srv)
	assert.True(t, s.Available())

	require.NoError(t, s.Init("req-1", `{"appName":"demo"}`, "basesepolia", ""))
	req := readRequest(t, conn)
	assert.Equal(t, "req-1", req.Get("id").String())
	assert.Equal(t, "init", req.Get("method").String())
	assert.Equal(t, `{"appName":"demo"}`, req.Get("params.config").String())
	assert.Equal(t, "basesepolia", req.Get("params.network").String())
	assert.Equal(t, gjson.Null, req.Get("params.customRpcUrl").Type)

	reply(t, conn, `{"id":"req-1","result":"success"}`)
	select {
	case cb := <-resolver.got:
		assert.Equal(t, callback{id: "req-1", payload: "success"}, cb)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}
}

func TestSendTransactionParams(t *testing.T) {
	s, srv := startServer(t, time.Second)
	conn := dialHost(t, s, srv)

	require.NoError(t, s.SendTransaction("req-2", `[{"to":"0x01","data":"0x02"}]`, "0x14a34"))
	req := readRequest(t, conn)
	assert.Equal(t, "sendTransaction", req.Get("method").String())
	assert.Equal(t, `[{"to":"0x01","data":"0x02"}]`, req.Get("params.calls").String())
	assert.Equal(t, "0x14a34", req.Get("params.chainIdOverride").String())
}

func TestCurrentNetwork(t *testing.T) {
	s, srv := startServer(t, 2*time.Second)
	conn := dialHost(t, s, srv)

	var wg sync.WaitGroup
	var method string
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req := gjson.ParseBytes(data)
		method = req.Get("method").String()
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"id":"`+req.Get("id").String()+`","result":{"chainId":84532,"name":"Base Sepolia"}}`))
	}()

	network, ok := s.CurrentNetwork()
	wg.Wait()
	assert.Equal(t, "getCurrentNetwork", method)
	require.True(t, ok)
	assert.JSONEq(t, `{"chainId":84532,"name":"Base Sepolia"}`, network)
}

func TestCurrentNetworkTimeout(t *testing.T) {
	s, srv := startServer(t, 50*time.Millisecond)
	dialHost(t, s, srv)

	_, ok := s.CurrentNetwork()
	assert.False(t, ok)
}

// networkQueryingResolver asks for the current network while handling the first callback.
type networkQueryingResolver struct {
	s       *Server
	once    sync.Once
	network chan string
	got     chan string
}

func (r *networkQueryingResolver) Resolve(id, _ string) {
	r.once.Do(func() {
		network, _ := r.s.CurrentNetwork()
		r.network <- network
	})
	r.got <- id
}

func TestCurrentNetworkAnsweredBehindCallbackBacklog(t *testing.T) {
	const backlog = 200
	s, srv := startServer(t, 2*time.Second)
	resolver := &networkQueryingResolver{s: s, network: make(chan string, 1), got: make(chan string, backlog)}
	s.SetResolver(resolver)
	conn := dialHost(t, s, srv)

	go func() {
		for i := 0; i < backlog; i++ {
			raw := fmt.Sprintf(`{"id":"cb-%d","result":"0x%x"}`, i, i)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
				return
			}
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		id := gjson.GetBytes(data, "id").String()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"`+id+`","result":{"chainId":8453}}`))
	}()

	select {
	case network := <-resolver.network:
		assert.JSONEq(t, `{"chainId":8453}`, network)
	case <-time.After(time.Second):
		t.Fatal("network query stalled behind queued callbacks")
	}
	for i := 0; i < backlog; i++ {
		select {
		case id := <-resolver.got:
			assert.Equal(t, fmt.Sprintf("cb-%d", i), id)
		case <-time.After(2 * time.Second):
			t.Fatalf("callback %d not delivered", i)
		}
	}
}

func TestHostDetach(t *testing.T) {
	s, srv := startServer(t, time.Second)
	conn := dialHost(t, s, srv)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return !s.Available() }, 2*time.Second, 10*time.Millisecond)
}

func TestStatusRoute(t *testing.T) {
	s, srv := startServer(t, time.Second)
	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, s.Available())
}

func TestParseResponse(t *testing.T) {
	resp, ok := parseResponse([]byte(`{"id":"a","result":["0x1","0x2"]}`))
	require.True(t, ok)
	assert.Equal(t, `["0x1","0x2"]`, resp.Payload)

	resp, ok = parseResponse([]byte(`{"id":"a","result":null}`))
	require.True(t, ok)
	assert.Empty(t, resp.Payload)

	resp, ok = parseResponse([]byte(`{"id":"a"}`))
	require.True(t, ok)
	assert.Empty(t, resp.Payload)

	_, ok = parseResponse([]byte(`{"result":"x"}`))
	assert.False(t, ok)
	_, ok = parseResponse([]byte(`garbage`))
	assert.False(t, ok)
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8545/host/", HostURL("0.0.0.0:8545"))
	assert.Equal(t, "ws://127.0.0.1:8545/bridge", BridgeURL(":8545"))

	qr, err := PairingQRCode(HostURL("127.0.0.1:8545"))
	require.NoError(t, err)
	assert.NotEmpty(t, qr)
}

// fakeHost answers every request the way a wallet host page would.
func fakeHost(conn *websocket.Conn, answers map[string]string) {
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req := gjson.ParseBytes(data)
			result, ok := answers[req.Get("method").String()]
			if !ok {
				result = "null"
			}
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"id":"`+req.Get("id").String()+`","result":`+result+`}`))
		}
	}()
}

func TestClientOverWebsocket(t *testing.T) {
	s, srv := startServer(t, time.Second)
	client := sdkbridge.NewClient(s)
	s.SetResolver(client)
	conn := dialHost(t, s, srv)
	fakeHost(conn, map[string]string{
		"init":              `"success"`,
		"connect":           `["0x1111111111111111111111111111111111111111"]`,
		"getSubAccount":     `"0x3333333333333333333333333333333333333333"`,
		"sendTransaction":   `"0xfeed"`,
		"getCurrentNetwork": `{"chainId":84532}`,
	})

	subReady := make(chan sdkbridge.SubAccountReady, 1)
	client.OnSubAccountReady(func(e sdkbridge.SubAccountReady) { subReady <- e })
	sent := make(chan sdkbridge.TransactionSent, 1)
	client.OnTransactionSent(func(e sdkbridge.TransactionSent) { sent <- e })

	require.NoError(t, client.Initialize(sdkbridge.Options{AppName: "demo", Network: "basesepolia"}))
	select {
	case e := <-subReady:
		assert.Equal(t, "0x3333333333333333333333333333333333333333", e.Address)
	case <-time.After(3 * time.Second):
		t.Fatal("sub-account never became ready")
	}
	assert.Equal(t, []string{"0x1111111111111111111111111111111111111111"}, client.ConnectedAddresses())

	call, err := txcodec.EncodeTokenTransfer("0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		"0x8ba1f109551bD432803012645Ac136ddd64DBA72", "2", 6)
	require.NoError(t, err)
	id, err := client.SendTransaction([]txcodec.Call{call}, "")
	require.NoError(t, err)
	select {
	case e := <-sent:
		assert.Equal(t, id, e.RequestID)
		assert.Equal(t, "0xfeed", e.Hash)
	case <-time.After(3 * time.Second):
		t.Fatal("transaction callback never arrived")
	}

	network, ok := client.CurrentNetwork()
	require.True(t, ok)
	assert.JSONEq(t, `{"chainId":84532}`, network)
}
