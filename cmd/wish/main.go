// Command wish purchases a wish from a cyberbuddha server, paying the
// 402 challenge with a locally held key.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dongruixiao/cyberbuddha/chains"
	"github.com/dongruixiao/cyberbuddha/client"
	"github.com/dongruixiao/cyberbuddha/types"
	"github.com/dongruixiao/cyberbuddha/wallet"
)

func main() {
	var (
		serverURL  = flag.String("server", "http://localhost:8080", "wish server URL")
		amount     = flag.String("amount", "", "USD amount to offer, e.g. 2.048")
		content    = flag.String("content", "", "wish text (at most 200 characters)")
		network    = flag.String("network", "", "payment network override")
		keyHex     = flag.String("key", "", "hex private key")
		keystore   = flag.String("keystore", "", "keystore directory (alternative to -key)")
		passphrase = flag.String("passphrase", "", "keystore passphrase")
		account    = flag.String("account", "", "keystore account address")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	if *amount == "" {
		fmt.Fprintln(os.Stderr, "usage: wish -amount 2.048 [-content \"...\"] -key <hex> | -keystore <dir>")
		os.Exit(2)
	}

	provider, err := newProvider(*keyHex, *keystore, *passphrase, *account)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	signer := wallet.NewSigner(provider)
	c := client.New(*serverURL, signer, client.WithObserver(client.Observer{
		OnStateChange: func(state client.State) {
			fmt.Printf("-> %s\n", state)
		},
	}))

	resp, settlement, err := c.MakeWish(ctx, types.WishRequest{
		Amount:  *amount,
		Content: *content,
		Network: *network,
	})
	if err != nil {
		fatal(err)
	}

	fmt.Println(resp.Message)
	if resp.Blessing != "" {
		fmt.Println(resp.Blessing)
	}
	if resp.Warning != "" {
		fmt.Println("warning:", resp.Warning)
	}
	if settlement != nil && settlement.Transaction != "" {
		if url, err := chains.ExplorerTxURL(settlement.Network, settlement.Transaction); err == nil {
			fmt.Println("tx:", url)
		} else {
			fmt.Println("tx:", settlement.Transaction)
		}
	}
}

// newProvider picks a wallet backend from the flags. Every supported
// chain id is pre-registered so network switches succeed.
func newProvider(keyHex, keystoreDir, passphrase, account string) (wallet.Provider, error) {
	var chainIDs []int64
	var defaultChainID int64
	for _, network := range chains.Supported() {
		cfg, _ := chains.Lookup(string(network))
		chainIDs = append(chainIDs, cfg.ChainID)
		if defaultChainID == 0 {
			defaultChainID = cfg.ChainID
		}
	}

	switch {
	case keyHex != "":
		return wallet.NewKeyProvider(keyHex, defaultChainID, chainIDs...)
	case keystoreDir != "":
		return wallet.NewKeystoreProvider(keystoreDir, passphrase, common.HexToAddress(account), defaultChainID, chainIDs...)
	default:
		return nil, fmt.Errorf("either -key or -keystore is required")
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
