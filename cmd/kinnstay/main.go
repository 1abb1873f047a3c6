// Command kinnstay exercises the reservation workflow end to end from
// the terminal: log in, pick a stay on a property, authorize the
// charge, and commit the booking and payment records.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kinnstay/booking-workflow/internal/config"
	"github.com/kinnstay/booking-workflow/marketplace"
	"github.com/kinnstay/booking-workflow/payment"
	"github.com/kinnstay/booking-workflow/processor"
	"github.com/kinnstay/booking-workflow/processor/stripeclient"
	"github.com/kinnstay/booking-workflow/reconcile"
	"github.com/kinnstay/booking-workflow/reservation"
	"github.com/kinnstay/booking-workflow/session"
	"github.com/kinnstay/booking-workflow/stay"
	"github.com/kinnstay/booking-workflow/storage"
	"github.com/kinnstay/booking-workflow/storage/filerepo"
	"github.com/kinnstay/booking-workflow/storage/redisrepo"
	"github.com/kinnstay/booking-workflow/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	propertyID := flag.String("property", "", "property to book")
	checkIn := flag.String("check-in", "", "check-in date (YYYY-MM-DD)")
	checkOut := flag.String("check-out", "", "check-out date (YYYY-MM-DD)")
	guests := flag.Int("guests", 1, "guest count")
	cardNumber := flag.String("card", "4242424242424242", "card number")
	flag.Parse()

	_ = godotenv.Load()
	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	repo, err := newStorageRepo(c)
	if err != nil {
		return err
	}

	stepTimeout := time.Duration(c.GetStepTimeoutSeconds()) * time.Second

	sessions, err := session.NewStore(loginClient(c, logger, stepTimeout), repo, logger)
	if err != nil {
		return err
	}
	if err := sessions.Rehydrate(); err != nil {
		return err
	}

	api, err := marketplace.NewClient(c.GetAPIBaseURL(), sessions, logger, marketplace.WithTimeout(stepTimeout))
	if err != nil {
		return err
	}
	proc, err := stripeclient.New(c.GetProcessorBaseURL(), c.GetProcessorAPIKey(), logger)
	if err != nil {
		return err
	}
	step, err := payment.NewStep(api, proc, logger)
	if err != nil {
		return err
	}
	storeRecorder, err := reconcile.NewStoreRecorder(repo)
	if err != nil {
		return err
	}
	recorder := reconcile.Multi{reconcile.NewLogRecorder(logger), storeRecorder}
	saga, err := reservation.NewSaga(api, proc, recorder, logger)
	if err != nil {
		return err
	}
	policy, err := stay.ParsePolicy(c.GetPricingPolicy())
	if err != nil {
		return err
	}
	orch, err := workflow.New(sessions, api, step, saga, policy, logger,
		workflow.WithStepDeadline(stepTimeout), workflow.WithCurrency(c.GetCurrency()))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if !sessions.IsAuthenticated() {
		if *email == "" || *password == "" {
			return errors.New("no stored session; -email and -password are required")
		}
		if err := sessions.Login(ctx, *email, *password); err != nil {
			return err
		}
	}
	if *propertyID == "" {
		fmt.Println("Logged in. Pass -property to book a stay.")
		return nil
	}

	return book(ctx, orch, *propertyID, *checkIn, *checkOut, *guests, *cardNumber)
}

func book(ctx context.Context, orch *workflow.Orchestrator, propertyID, checkIn, checkOut string, guests int, cardNumber string) error {
	flow, err := orch.Begin(ctx, propertyID)
	if err != nil {
		return err
	}

	sel := flow.Selection()
	if checkIn != "" {
		date, err := time.Parse("2006-01-02", checkIn)
		if err != nil {
			return errors.Wrap(err, "parsing -check-in")
		}
		sel.SetCheckIn(date)
	}
	if checkOut != "" {
		date, err := time.Parse("2006-01-02", checkOut)
		if err != nil {
			return errors.Wrap(err, "parsing -check-out")
		}
		sel.SetCheckOut(date)
	}
	sel.SetGuests(guests)

	quote, err := flow.Review()
	if err != nil {
		return err
	}
	fmt.Printf("%d nights, total %.2f %s\n", quote.Nights, quote.Total, quote.Currency)

	expiry := time.Now().AddDate(2, 0, 0)
	result, err := flow.ConfirmAndPay(ctx,
		processor.Card{Number: cardNumber, ExpMonth: int(expiry.Month()), ExpYear: expiry.Year(), CVC: "314"},
		processor.BillingDetails{})
	if err != nil {
		return errors.Wrapf(err, "reservation %s", flow.State())
	}

	fmt.Printf("Booked! booking %s, payment %s\n", result.Booking.ID, result.Payment.ID)
	return nil
}

// loginClient is a token-less marketplace client used only for the
// credential exchange; the session store is its own token source for
// everything after login.
func loginClient(c config.Config, logger zerolog.Logger, timeout time.Duration) session.Exchanger {
	client, err := marketplace.NewClient(c.GetAPIBaseURL(), nil, logger, marketplace.WithTimeout(timeout))
	if err != nil {
		panic(err) // baseURL already validated by config defaults
	}
	return client
}

func newStorageRepo(c config.Config) (storage.Repo, error) {
	switch c.GetStorageBackend() {
	case "redis":
		return redisrepo.New(c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB(), 0)
	default:
		return filerepo.New(c.GetDataFolder())
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
