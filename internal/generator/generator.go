package generator

import (
	"fmt"
	"math"
	"time"
)

// Params configures a generation run.
type Params struct {
	Seed         int64
	Transactions int
	Year         int
	AnomalyRate  float64 // fraction of transactions seeded with defects
}

// Event is one row of events.csv.
type Event struct {
	ID        string
	Name      string
	Venue     string
	Capacity  int
	BasePrice float64
	Category  string
	Date      time.Time
}

// Transaction is one row of transactions.csv. Event attributes are
// denormalized onto every sale, matching the shape BI teams consume.
type Transaction struct {
	ID             string
	EventID        string
	EventDate      time.Time
	Venue          string
	Capacity       int
	BasePrice      float64
	Category       string
	PurchaseDate   time.Time
	LeadTimeDays   int
	Channel        string
	AudienceType   string
	FareType       string
	UnitPrice      float64
	TicketsQty     int
	PricePaidTotal float64
	GeoZone        string
}

// Attendance is one row of attendance.csv.
type Attendance struct {
	TransactionID string
	EventID       string
	EventDate     time.Time
	TicketsQty    int
	Attended      int
}

// Bundle holds one generated set of datasets.
type Bundle struct {
	Events       []Event
	Transactions []Transaction
	Attendance   []Attendance
}

// Generator builds synthetic ticketing datasets.
type Generator struct {
	params  Params
	sampler *Sampler
}

// New creates a generator. The same params always produce the same bundle.
func New(params Params) *Generator {
	return &Generator{params: params, sampler: NewSampler(params.Seed)}
}

// venue lineup for the season. Capacities drive how sales spread across
// events.
var venues = []struct {
	id        string
	name      string
	venue     string
	capacity  int
	basePrice float64
	category  string
}{
	{"EVT001", "Festival — Soirée Electro", "Friche la Belle de Mai", 1600, 29, "festival"},
	{"EVT002", "Rap Live — Salle", "Espace Julien", 1200, 25, "salle"},
	{"EVT003", "Pop/Indé — Salle", "Le Makeda", 450, 18, "salle"},
	{"EVT004", "DJ Set — Club", "Le Cabaret Aléatoire", 700, 22, "club"},
	{"EVT005", "Open Air — Electro", "Parc Borély", 3000, 24, "festival"},
	{"EVT006", "Stand-up — Salle", "CEPAC Silo", 1800, 32, "salle"},
}

var (
	channelNames   = []string{"web", "partenaires", "guichet"}
	channelWeights = []float64{0.72, 0.18, 0.10}

	audienceNames   = []string{"local", "touriste"}
	audienceWeights = []float64{0.78, 0.22}

	fareNames       = []string{"plein", "reduit", "etudiant"}
	fareWeights     = []float64{0.75, 0.15, 0.10}
	fareMultipliers = map[string]float64{"plein": 1.00, "reduit": 0.80, "etudiant": 0.70}

	geoZones = []string{
		"13001", "13002", "13003", "13004", "13005", "13006", "13007", "13008",
		"13009", "13010", "13011", "13012", "13013", "13014", "13015", "13016",
		"Aubagne", "La Ciotat", "Aix", "Autres",
	}
	geoWeights = []float64{
		0.05, 0.04, 0.04, 0.05, 0.06, 0.10, 0.05, 0.10,
		0.06, 0.05, 0.05, 0.05, 0.04, 0.04, 0.04, 0.04,
		0.03, 0.03, 0.04, 0.05,
	}
)

// Generate builds the three datasets. The draw order is fixed, so the seed
// fully determines the output.
func (g *Generator) Generate() *Bundle {
	events := g.makeEvents()
	transactions := g.makeTransactions(events)
	attendance := g.makeAttendance(transactions)

	bundle := &Bundle{
		Events:       events,
		Transactions: transactions,
		Attendance:   attendance,
	}
	if g.params.AnomalyRate > 0 {
		g.injectAnomalies(bundle)
	}
	return bundle
}

// makeEvents staggers the season from March 15 with 10-27 day gaps.
func (g *Generator) makeEvents() []Event {
	start := time.Date(g.params.Year, time.March, 15, 0, 0, 0, 0, time.UTC)
	events := make([]Event, 0, len(venues))
	offset := 0
	for _, v := range venues {
		offset += g.sampler.IntRange(10, 28)
		events = append(events, Event{
			ID:        v.id,
			Name:      v.name,
			Venue:     v.venue,
			Capacity:  v.capacity,
			BasePrice: v.basePrice,
			Category:  v.category,
			Date:      start.AddDate(0, 0, offset),
		})
	}
	return events
}

func (g *Generator) makeTransactions(events []Event) []Transaction {
	capacities := make([]float64, len(events))
	for i, ev := range events {
		capacities[i] = float64(ev.Capacity)
	}

	transactions := make([]Transaction, 0, g.params.Transactions)
	for i := 1; i <= g.params.Transactions; i++ {
		ev := events[g.sampler.Weighted(capacities)]

		// Most buyers purchase far ahead, with a last-minute spike.
		daysBefore := clampInt(int(g.sampler.Gamma(2.2, 12)), 0, 120)
		daysBefore = clampInt(120-daysBefore, 0, 120)

		channel := channelNames[g.sampler.Weighted(channelWeights)]
		audience := audienceNames[g.sampler.Weighted(audienceWeights)]
		fare := fareNames[g.sampler.Weighted(fareWeights)]

		price := ev.BasePrice * leadMultiplier(daysBefore) * fareMultipliers[fare]
		price *= g.sampler.Normal(1.0, 0.03)
		if price < 8 {
			price = 8
		}
		unit := roundCents(price)

		// Web baskets run slightly larger.
		lambda := 1.12
		if channel == "web" {
			lambda = 1.25
		}
		qty := clampInt(g.sampler.Poisson(lambda)+1, 1, 6)

		transactions = append(transactions, Transaction{
			ID:             fmt.Sprintf("TX%06d", i),
			EventID:        ev.ID,
			EventDate:      ev.Date,
			Venue:          ev.Venue,
			Capacity:       ev.Capacity,
			BasePrice:      ev.BasePrice,
			Category:       ev.Category,
			PurchaseDate:   ev.Date.AddDate(0, 0, -daysBefore),
			LeadTimeDays:   daysBefore,
			Channel:        channel,
			AudienceType:   audience,
			FareType:       fare,
			UnitPrice:      unit,
			TicketsQty:     qty,
			PricePaidTotal: roundCents(unit * float64(qty)),
			GeoZone:        geoZones[g.sampler.Weighted(geoWeights)],
		})
	}
	return transactions
}

// makeAttendance draws a no-show flag per transaction. Very early buyers
// and partner-channel sales skip more often; a no-show voids the whole
// transaction.
func (g *Generator) makeAttendance(transactions []Transaction) []Attendance {
	attendance := make([]Attendance, 0, len(transactions))
	for _, tx := range transactions {
		p := 0.04
		if tx.LeadTimeDays > 60 {
			p += 0.03
		}
		if tx.Channel == "partenaires" {
			p += 0.02
		}
		attended := 1
		if g.sampler.Float64() < p {
			attended = 0
		}
		attendance = append(attendance, Attendance{
			TransactionID: tx.ID,
			EventID:       tx.EventID,
			EventDate:     tx.EventDate,
			TicketsQty:    tx.TicketsQty,
			Attended:      attended,
		})
	}
	return attendance
}

// anomalyClasses is the number of defect kinds injectAnomalies cycles over.
const anomalyClasses = 8

// injectAnomalies corrupts a deterministic sample of rows with the defect
// classes the audit checks look for. Duplicate IDs are copied from rows
// outside the sample so the duplicates survive later mutations.
func (g *Generator) injectAnomalies(b *Bundle) {
	n := int(g.params.AnomalyRate * float64(len(b.Transactions)))
	if n <= 0 {
		return
	}
	if n > len(b.Transactions) {
		n = len(b.Transactions)
	}

	order := g.sampler.Perm(len(b.Transactions))
	targets, clean := order[:n], order[n:]

	dupSource := 0
	for i, idx := range targets {
		switch i % anomalyClasses {
		case 0: // duplicate transaction_id
			src := (idx + 1) % len(b.Transactions)
			if len(clean) > 0 {
				src = clean[dupSource%len(clean)]
				dupSource++
			}
			b.Transactions[idx].ID = b.Transactions[src].ID
		case 1: // sale for an event that does not exist
			b.Transactions[idx].EventID = "EVT999"
		case 2: // non-positive revenue
			b.Transactions[idx].PricePaidTotal = 0
		case 3: // empty basket
			b.Transactions[idx].TicketsQty = 0
		case 4: // negative lead time
			b.Transactions[idx].LeadTimeDays = -g.sampler.IntRange(1, 10)
		case 5: // purchase after the event
			b.Transactions[idx].PurchaseDate = b.Transactions[idx].EventDate.AddDate(0, 0, g.sampler.IntRange(1, 15))
		case 6: // attendance flag outside {0,1}
			b.Attendance[idx].Attended = 2
		case 7: // attendance row pointing at no transaction
			b.Attendance[idx].TransactionID = fmt.Sprintf("TX9%06d", idx)
		}
	}
}

// leadMultiplier prices early birds down and last-minute buyers up.
func leadMultiplier(leadDays int) float64 {
	switch {
	case leadDays > 45:
		return 0.85
	case leadDays <= 7:
		return 1.10
	default:
		return 1.00
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
