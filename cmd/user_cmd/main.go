package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"github.com/TEENet-io/mintburn-bridge/reporter"
)

const (
	ENV_BRIDGE_URL = "BRIDGE_URL"
)

func main() {
	viper.AutomaticEnv()
	viper.SetDefault(ENV_BRIDGE_URL, "http://127.0.0.1:8080")

	url := flag.String("url", viper.GetString(ENV_BRIDGE_URL), "http address of the bridge server")
	flag.Parse()

	reader := reporter.NewHttpReader(*url)

	fmt.Println(strings.Repeat("=", 30))
	fmt.Println("Welcome to bridge user command line tool.")
	fmt.Printf("Connected to: %s\n", *url)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Println("What to do:")
		fmt.Println("1) Get deposit address")
		fmt.Println("2) Request deposit")
		fmt.Println("3) List deposits")
		fmt.Println("4) View withdrawal")
		fmt.Println("5) View task")
		fmt.Print("Type option and press Enter: ")

		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch input {
		case "1":
			addr, err := reader.GetDepositAddress(ctx, ask(scanner, "Enter recipient (EVM address): "))
			if err != nil {
				fmt.Printf("Error getting deposit address: %s\n", err)
				break
			}
			fmt.Printf("Pay BTC to: %s\n", addr)
		case "2":
			task, addr, err := reader.RequestDeposit(ctx, ask(scanner, "Enter recipient (EVM address): "))
			if err != nil {
				fmt.Printf("Error requesting deposit: %s\n", err)
				break
			}
			fmt.Printf("Deposit flow %s started, pay BTC to: %s\n", task, addr)
		case "3":
			deposits, err := reader.GetDeposits(ctx, ask(scanner, "Enter recipient (EVM address): "))
			if err != nil {
				fmt.Printf("Error listing deposits: %s\n", err)
				break
			}
			for _, d := range deposits {
				fmt.Printf("%s %d sat, %d confirmations, %s %s\n", d.SourceID, d.Amount, d.Confirmations, d.Status, d.Reason)
				if d.Order != nil {
					fmt.Printf("  mint order nonce %d %s %s\n", d.Order.Nonce, d.Order.Status, d.Order.RejectCode)
				}
			}
		case "4":
			opID, err := strconv.ParseUint(ask(scanner, "Enter operation id: "), 10, 32)
			if err != nil {
				fmt.Printf("Invalid operation id: %s\n", err)
				break
			}
			w, err := reader.GetWithdrawal(ctx, uint32(opID))
			if err != nil {
				fmt.Printf("Error getting withdrawal: %s\n", err)
				break
			}
			fmt.Printf("Withdrawal %d: %d sat to %s, %s %s, btc tx %s\n", w.OperationID, w.Satoshi, w.Receiver, w.Status, w.Reason, w.BtcTxID)
		case "5":
			t, err := reader.GetTask(ctx, ask(scanner, "Enter task id: "))
			if err != nil {
				fmt.Printf("Error getting task: %s\n", err)
				break
			}
			fmt.Printf("Task %s (%s %s): %s, attempts %d %s\n", t.ID, t.Kind, t.Key, t.State, t.Attempts, t.LastError)
		default:
			fmt.Println("Unknown option, try again.")
		}
		fmt.Println()
	}
}

func ask(scanner *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}
