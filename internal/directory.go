package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"water-bill-portal/pkg/parser"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAmbiguousMatch  = errors.New("more than one account matches")
	ErrInvalidLookup   = errors.New("invalid lookup key")
)

const (
	AccountsCollection = "accounts"
	BillsCollection    = "bills"
	MaxSearchResults   = 20
	MaxBillHistory     = 24
	NoDemandConsumerNo = "AKL2024999999"
)

type AccountDirectory interface {
	Search(ctx context.Context, key LookupKey) ([]Account, error)
	Find(ctx context.Context, key LookupKey) (Account, error)
	// BillHistory lists the consumer's bills, latest period first.
	BillHistory(ctx context.Context, consumerNo string) ([]BillRecord, error)
}

func normalizeKey(key LookupKey) (LookupKey, error) {
	key.Value = strings.TrimSpace(key.Value)
	if key.Filter == "" {
		key.Filter = FilterConsumer
	}
	if !key.Filter.Valid() {
		return LookupKey{}, fmt.Errorf("%w: unknown filter %q", ErrInvalidLookup, key.Filter)
	}
	if key.Value == "" {
		return LookupKey{}, fmt.Errorf("%w: empty value", ErrInvalidLookup)
	}
	return key, nil
}

func findOne(ctx context.Context, d AccountDirectory, key LookupKey) (Account, error) {
	accounts, err := d.Search(ctx, key)
	if err != nil {
		return Account{}, err
	}

	switch len(accounts) {
	case 0:
		return Account{}, ErrAccountNotFound
	case 1:
		return accounts[0], nil
	}

	return Account{}, fmt.Errorf("%w: %d accounts for %s %q", ErrAmbiguousMatch, len(accounts), key.Filter, key.Value)
}

// StaticDirectory serves the portal's demo data set. Consumer-number lookups
// for unknown numbers get a generated account so any number can be tried.
type StaticDirectory struct {
	accounts          []Account
	delay             time.Duration
	synthesizeUnknown bool
	loc               *time.Location
}

func NewStaticDirectory(delay time.Duration, loc *time.Location) *StaticDirectory {
	if loc == nil {
		loc = time.UTC
	}

	d := &StaticDirectory{
		delay:             delay,
		synthesizeUnknown: true,
		loc:               loc,
	}

	seed := []struct {
		id, name, nameMarathi, mobile, ward, propertyNo string
		connections                                     int
	}{
		{"WB123456", "Rajesh Kumar Sharma", "राजेश कुमार शर्मा", "9876543210", "5", "5/123", 2},
		{"WB123457", "Rajesh Kumar Patil", "राजेश कुमार पाटील", "9876543211", "12", "12/456", 1},
		{"WB234567", "Sunita Deshmukh", "सुनीता देशमुख", "9876543212", "3", "3/789", 1},
		{"WB234568", "Anil Deshmukh", "अनिल देशमुख", "9876543212", "8", "8/234", 1},
		{"WB234569", "Prakash Deshmukh", "प्रकाश देशमुख", "9876543212", "15", "15/567", 1},
		{"WB345678", "Amit Patil", "अमित पाटील", "9123456780", "7", "7/345", 1},
		{"WB345679", "Amit Patil", "अमित पाटील", "9234567890", "11", "11/678", 2},
		{"WB456789", "Sanjay Joshi", "संजय जोशी", "9345678901", "5", "5/234", 1},
		{"WB456790", "Vijay Kulkarni", "विजय कुलकर्णी", "9456789012", "5", "5/567", 1},
		{"WB456791", "Rahul More", "राहुल मोरे", "9567890123", "5", "5/890", 1},
		{"WB567890", "Priya Gaikwad", "प्रिया गायकवाड", "9678901234", "9", "9/123", 1},
		{"WB789012", "Manish Desai", "मनीष देसाई", "9789012345", "4", "4/456", 1},
		{"WB789013", "Sneha Khan", "स्नेहा खान", "9890123456", "6", "6/789", 1},
	}
	for i, s := range seed {
		a := d.demoAccount(s.id)
		a.Name = s.name
		a.NameMarathi = s.nameMarathi
		a.MobileNo = s.mobile
		a.WardNo = s.ward
		a.PropertyNo = s.propertyNo
		a.Connections = s.connections
		a.UPIC = fmt.Sprintf("UPIC%06d", 100000+i)
		a.ApplicationNo = fmt.Sprintf("APP-2024-%04d", i+1)
		d.accounts = append(d.accounts, a)
	}
	d.accounts = append(d.accounts, d.demoAccount(NoDemandConsumerNo))

	return d
}

// WithoutSynthesis makes unknown consumer numbers fail with ErrAccountNotFound.
func (d *StaticDirectory) WithoutSynthesis() *StaticDirectory {
	d.synthesizeUnknown = false
	return d
}

func (d *StaticDirectory) Search(ctx context.Context, key LookupKey) ([]Account, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	var matches []Account
	for _, a := range d.accounts {
		if staticMatch(a, key) {
			matches = append(matches, a)
		}
		if len(matches) == MaxSearchResults {
			break
		}
	}

	if len(matches) == 0 && key.Filter == FilterConsumer && d.synthesizeUnknown {
		slog.Debug("generating demo account", "consumerNo", key.Value)
		matches = append(matches, d.demoAccount(key.Value))
	}

	return matches, nil
}

func (d *StaticDirectory) Find(ctx context.Context, key LookupKey) (Account, error) {
	return findOne(ctx, d, key)
}

func (d *StaticDirectory) wait(ctx context.Context) error {
	if d.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func staticMatch(a Account, key LookupKey) bool {
	switch key.Filter {
	case FilterConsumer:
		return strings.EqualFold(a.ConsumerNo, key.Value)
	case FilterContact:
		return a.MobileNo == key.Value
	case FilterName:
		needle := strings.ToLower(key.Value)
		return strings.Contains(strings.ToLower(a.Name), needle) ||
			strings.Contains(a.NameMarathi, key.Value)
	case FilterWard:
		return a.WardNo == strings.TrimPrefix(strings.ToLower(key.Value), "ward-")
	case FilterUPIC:
		return strings.EqualFold(a.UPIC, key.Value)
	case FilterApplication:
		return strings.EqualFold(a.ApplicationNo, key.Value)
	}
	return false
}

func (d *StaticDirectory) demoAccount(consumerNo string) Account {
	suffix := consumerNo
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}

	validTill, _ := parser.ParseDate("2024-11-15", d.loc)

	a := Account{
		ConsumerNo:         consumerNo,
		OldConsumerNo:      "OLD-" + suffix,
		Name:               "Rajesh Kumar Sharma",
		NameMarathi:        "राजेश कुमार शर्मा",
		MobileNo:           "9876543210",
		EmailID:            "rajesh.sharma@example.com",
		ZoneArea:           "Zone A - Central",
		WardNo:             "5",
		PropertyNo:         "123",
		Address:            "123, Gandhi Nagar, Ward No. 5, Akola - 444001",
		Connections:        1,
		ConnectionType:     "Residential",
		ConnectionStatus:   "Active",
		MeterNo:            "MTR-2024-" + suffix,
		UnitsConsumed:      22,
		CurrentBillMonth:   "October 2024",
		PreviousDueAmount:  decimal.NewFromInt(1080),
		CurrentBillAmount:  decimal.NewFromInt(360),
		InterestAmount:     decimal.NewFromInt(45),
		DiscountAmount:     decimal.NewFromInt(72),
		TotalPayableAmount: decimal.NewFromInt(1413),
		DiscountSchemeName: "10% Early Payment Discount",
		DiscountValidTill:  validTill,
	}

	if consumerNo == NoDemandConsumerNo {
		a.PreviousDueAmount = decimal.Zero
		a.CurrentBillAmount = decimal.Zero
		a.InterestAmount = decimal.Zero
		a.DiscountAmount = decimal.Zero
		a.TotalPayableAmount = decimal.Zero
	}

	return a
}

var demoBillAmounts = []int64{1450, 1250, 1180, 1320, 1290, 1150}

// BillHistory serves the demo history: the six bills up to November 2024,
// the latest one unpaid unless nothing is owed on the account.
func (d *StaticDirectory) BillHistory(ctx context.Context, consumerNo string) ([]BillRecord, error) {
	account, err := d.Find(ctx, LookupKey{Filter: FilterConsumer, Value: consumerNo})
	if err != nil {
		return nil, err
	}

	latest := time.Date(2024, time.November, 1, 0, 0, 0, 0, d.loc)
	bills := make([]BillRecord, 0, len(demoBillAmounts))
	for i, amount := range demoBillAmounts {
		period := latest.AddDate(0, -i, 0)

		status := BillPaid
		if i == 0 && account.TotalPayableAmount.IsPositive() {
			status = BillUnpaid
		}

		bills = append(bills, BillRecord{
			BillNo:  fmt.Sprintf("BILL-%d-%02d-001", period.Year(), period.Month()),
			Period:  period,
			Amount:  decimal.NewFromInt(amount),
			DueDate: period.AddDate(0, 0, 9),
			Status:  status,
		})
	}

	return bills, nil
}

// MongoDirectory looks accounts up in the accounts collection.
type MongoDirectory struct {
	collection *mongo.Collection
	bills      *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		collection: db.Collection(AccountsCollection),
		bills:      db.Collection(BillsCollection),
	}
}

type accountDocument struct {
	ConsumerNo         string               `bson:"consumerNo"`
	OldConsumerNo      string               `bson:"oldConsumerNo"`
	Name               string               `bson:"name"`
	NameMarathi        string               `bson:"nameMarathi"`
	MobileNo           string               `bson:"mobileNo"`
	EmailID            string               `bson:"emailId"`
	ZoneArea           string               `bson:"zoneArea"`
	WardNo             string               `bson:"wardNo"`
	PropertyNo         string               `bson:"propertyNo"`
	UPIC               string               `bson:"upic"`
	ApplicationNo      string               `bson:"applicationNo"`
	Address            string               `bson:"address"`
	Connections        int                  `bson:"connections"`
	ConnectionType     string               `bson:"connectionType"`
	ConnectionStatus   string               `bson:"connectionStatus"`
	MeterNo            string               `bson:"meterNo"`
	UnitsConsumed      int                  `bson:"unitsConsumed"`
	CurrentBillMonth   string               `bson:"currentBillMonth"`
	PreviousDueAmount  primitive.Decimal128 `bson:"previousDueAmount"`
	CurrentBillAmount  primitive.Decimal128 `bson:"currentBillAmount"`
	InterestAmount     primitive.Decimal128 `bson:"interestAmount"`
	DiscountAmount     primitive.Decimal128 `bson:"discountAmount"`
	TotalPayableAmount primitive.Decimal128 `bson:"totalPayableAmount"`
	DiscountSchemeName string               `bson:"discountSchemeName,omitempty"`
	DiscountValidTill  *time.Time           `bson:"discountValidTill,omitempty"`
}

func (doc accountDocument) toAccount() (Account, error) {
	amounts := make([]decimal.Decimal, 5)
	for i, raw := range []primitive.Decimal128{
		doc.PreviousDueAmount,
		doc.CurrentBillAmount,
		doc.InterestAmount,
		doc.DiscountAmount,
		doc.TotalPayableAmount,
	} {
		amount, err := decimal128ToDecimal(raw)
		if err != nil {
			return Account{}, fmt.Errorf("account %s: %w", doc.ConsumerNo, err)
		}
		amounts[i] = amount
	}

	return Account{
		ConsumerNo:         doc.ConsumerNo,
		OldConsumerNo:      doc.OldConsumerNo,
		Name:               doc.Name,
		NameMarathi:        doc.NameMarathi,
		MobileNo:           doc.MobileNo,
		EmailID:            doc.EmailID,
		ZoneArea:           doc.ZoneArea,
		WardNo:             doc.WardNo,
		PropertyNo:         doc.PropertyNo,
		UPIC:               doc.UPIC,
		ApplicationNo:      doc.ApplicationNo,
		Address:            doc.Address,
		Connections:        doc.Connections,
		ConnectionType:     doc.ConnectionType,
		ConnectionStatus:   doc.ConnectionStatus,
		MeterNo:            doc.MeterNo,
		UnitsConsumed:      doc.UnitsConsumed,
		CurrentBillMonth:   doc.CurrentBillMonth,
		PreviousDueAmount:  amounts[0],
		CurrentBillAmount:  amounts[1],
		InterestAmount:     amounts[2],
		DiscountAmount:     amounts[3],
		TotalPayableAmount: amounts[4],
		DiscountSchemeName: doc.DiscountSchemeName,
		DiscountValidTill:  doc.DiscountValidTill,
	}, nil
}

// An unset Decimal128 field decodes as zero.
func decimal128ToDecimal(d primitive.Decimal128) (decimal.Decimal, error) {
	if d == (primitive.Decimal128{}) {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(d.String())
}

func mongoFilter(key LookupKey) bson.M {
	switch key.Filter {
	case FilterContact:
		return bson.M{"mobileNo": key.Value}
	case FilterName:
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(key.Value), Options: "i"}
		return bson.M{"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"nameMarathi": pattern},
		}}
	case FilterWard:
		return bson.M{"wardNo": strings.TrimPrefix(strings.ToLower(key.Value), "ward-")}
	case FilterUPIC:
		return bson.M{"upic": key.Value}
	case FilterApplication:
		return bson.M{"applicationNo": key.Value}
	}
	return bson.M{"consumerNo": key.Value}
}

func (d *MongoDirectory) Search(ctx context.Context, key LookupKey) ([]Account, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetLimit(MaxSearchResults).
		SetSort(bson.D{{Key: "consumerNo", Value: 1}})

	cursor, err := d.collection.Find(ctx, mongoFilter(key), opts)
	if err != nil {
		slog.Error("failed to search accounts", "err", err, "filter", key.Filter)
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		slog.Error("failed to decode accounts", "err", err, "filter", key.Filter)
		return nil, err
	}

	accounts := make([]Account, 0, len(docs))
	for _, doc := range docs {
		a, err := doc.toAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, nil
}

func (d *MongoDirectory) Find(ctx context.Context, key LookupKey) (Account, error) {
	return findOne(ctx, d, key)
}

type billDocument struct {
	ConsumerNo string               `bson:"consumerNo"`
	BillNo     string               `bson:"billNo"`
	Period     time.Time            `bson:"period"`
	Amount     primitive.Decimal128 `bson:"amount"`
	DueDate    time.Time            `bson:"dueDate"`
	Status     string               `bson:"status"`
}

func (doc billDocument) toRecord() (BillRecord, error) {
	amount, err := decimal128ToDecimal(doc.Amount)
	if err != nil {
		return BillRecord{}, fmt.Errorf("bill %s: %w", doc.BillNo, err)
	}

	status := BillStatus(doc.Status)
	if status != BillPaid && status != BillUnpaid {
		return BillRecord{}, fmt.Errorf("bill %s: unknown status %q", doc.BillNo, doc.Status)
	}

	return BillRecord{
		BillNo:  doc.BillNo,
		Period:  doc.Period,
		Amount:  amount,
		DueDate: doc.DueDate,
		Status:  status,
	}, nil
}

func (d *MongoDirectory) BillHistory(ctx context.Context, consumerNo string) ([]BillRecord, error) {
	account, err := d.Find(ctx, LookupKey{Filter: FilterConsumer, Value: consumerNo})
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetLimit(MaxBillHistory).
		SetSort(bson.D{{Key: "period", Value: -1}})

	cursor, err := d.bills.Find(ctx, bson.M{"consumerNo": account.ConsumerNo}, opts)
	if err != nil {
		slog.Error("failed to list bills", "err", err, "consumerNo", account.ConsumerNo)
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []billDocument
	if err := cursor.All(ctx, &docs); err != nil {
		slog.Error("failed to decode bills", "err", err, "consumerNo", account.ConsumerNo)
		return nil, err
	}

	bills := make([]BillRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := doc.toRecord()
		if err != nil {
			return nil, err
		}
		bills = append(bills, record)
	}

	return bills, nil
}
