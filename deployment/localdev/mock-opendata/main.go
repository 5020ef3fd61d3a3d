// Command mock-opendata serves canned Socrata, Census, PLACES and AirNow responses.
// Point healthfeeds at it with HEALTHFEEDS_MOCK_UPSTREAM=http://localhost:8090.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/resource/43nn-pn8j.json", func(w http.ResponseWriter, r *http.Request) {
		sel := r.URL.Query().Get("$select")
		switch {
		case strings.HasPrefix(sel, "cuisine_description"):
			writeJSON(w, []map[string]string{
				{"cuisine_description": "American", "violations": "41230"},
				{"cuisine_description": "Chinese", "violations": "30112"},
				{"cuisine_description": "Pizza", "violations": "15877"},
				{"cuisine_description": "Coffee/Tea", "violations": "14020"},
				{"cuisine_description": "Latin American", "violations": "11984"},
				{"cuisine_description": "Mexican", "violations": "10412"},
				{"cuisine_description": "Bakery Products/Desserts", "violations": "8021"},
				{"cuisine_description": "Caribbean", "violations": "7940"},
				{"cuisine_description": "Japanese", "violations": "7711"},
			})
		case strings.HasPrefix(sel, "boro"):
			writeJSON(w, []map[string]string{
				{"boro": "Manhattan", "score_sum": "912000", "n": "62000"},
				{"boro": "Brooklyn", "score_sum": "740000", "n": "49000"},
				{"boro": "Queens", "score_sum": "705000", "n": "45500"},
				{"boro": "Bronx", "score_sum": "301000", "n": "19800"},
				{"boro": "Staten Island", "score_sum": "118000", "n": "7350"},
				{"boro": "0", "score_sum": "120", "n": "9"},
			})
		case strings.HasPrefix(sel, "grade"):
			writeJSON(w, []map[string]string{
				{"grade": "A", "count": "98000"},
				{"grade": "B", "count": "14100"},
				{"grade": "C", "count": "6900"},
				{"grade": "Z", "count": "3100"},
				{"grade": "P", "count": "2200"},
				{"grade": "N", "count": "1900"},
			})
		default:
			http.Error(w, "unsupported $select", http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/resource/p937-wjvj.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]string{
			{"borough": "Brooklyn", "result": "Rat Activity", "count": "1840"},
			{"borough": "Brooklyn", "result": "Passed", "count": "2310"},
			{"borough": "Manhattan", "result": "Rat Activity", "count": "1620"},
			{"borough": "Manhattan", "result": "Passed", "count": "1980"},
			{"borough": "Bronx", "result": "Rat Activity", "count": "1210"},
			{"borough": "Bronx", "result": "Passed", "count": "1440"},
			{"borough": "Queens", "result": "Rat Activity", "count": "610"},
			{"borough": "Queens", "result": "Passed", "count": "1290"},
			{"borough": "Staten Island", "result": "Rat Activity", "count": "140"},
			{"borough": "Staten Island", "result": "Passed", "count": "380"},
			{"borough": "Staten Island", "result": "Bait applied", "count": "55"},
		})
	})

	mux.HandleFunc("/resource/fhrw-4uyv.json", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("$select"), "complaint_type") {
			writeJSON(w, []map[string]string{
				{"complaint_type": "Noise - Residential", "count": "21450"},
				{"complaint_type": "Noise - Street/Sidewalk", "count": "9870"},
				{"complaint_type": "Noise - Commercial", "count": "4420"},
				{"complaint_type": "Noise - Vehicle", "count": "3310"},
				{"complaint_type": "Noise", "count": "2120"},
				{"complaint_type": "Noise - Helicopter", "count": "1340"},
				{"complaint_type": "Noise - Park", "count": "610"},
				{"complaint_type": "Noise - House of Worship", "count": "120"},
			})
			return
		}
		writeJSON(w, []map[string]string{
			{"borough": "BROOKLYN", "complaints": "12840"},
			{"borough": "MANHATTAN", "complaints": "11960"},
			{"borough": "BRONX", "complaints": "9420"},
			{"borough": "QUEENS", "complaints": "7980"},
			{"borough": "STATEN ISLAND", "complaints": "1040"},
			{"borough": "Unspecified", "complaints": "75"},
		})
	})

	mux.HandleFunc("/resource/rc75-m7u3.json", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("$select"), "date_of_interest") {
			writeJSON(w, covidDays(time.Now().UTC()))
			return
		}
		writeJSON(w, []map[string]string{{
			"bx_cases": "4120", "bx_hosp": "410",
			"bk_cases": "7930", "bk_hosp": "690",
			"mn_cases": "5210", "mn_hosp": "380",
			"qn_cases": "7010", "qn_hosp": "610",
			"si_cases": "1620", "si_hosp": "150",
		}})
	})

	mux.HandleFunc("/data/2022/acs/acs5", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, [][]string{
			{"NAME", "B03002_001E", "B03002_003E", "B03002_004E", "B03002_006E", "B03002_012E", "state", "county"},
			{"Bronx County, New York", "1443229", "127386", "408437", "53262", "793087", "36", "005"},
			{"Kings County, New York", "2679620", "947498", "719893", "322924", "499524", "36", "047"},
			{"New York County, New York", "1645867", "765283", "198113", "207011", "390386", "36", "061"},
			{"Queens County, New York", "2360826", "547093", "379014", "624285", "648016", "36", "081"},
			{"Richmond County, New York", "492734", "293473", "45180", "52327", "95039", "36", "085"},
		})
	})

	mux.HandleFunc("/resource/cwsq-ngmh.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]string{
			{"locationid": "36005000100", "measureid": "OBESITY", "data_value": "31.2"},
			{"locationid": "36005000100", "measureid": "DIABETES", "data_value": "14.8"},
			{"locationid": "36047000200", "measureid": "OBESITY", "data_value": "27.5"},
			{"locationid": "36047000200", "measureid": "CSMOKING", "data_value": "12.1"},
			{"locationid": "36061000100", "measureid": "BPHIGH", "data_value": "24.9"},
			{"locationid": "36081000100", "measureid": "CASTHMA", "data_value": "10.4"},
			{"locationid": "36085000300", "measureid": "MHLTH", "data_value": "13.7"},
		})
	})

	mux.HandleFunc("/aq/observation/zipCode/current/", func(w http.ResponseWriter, r *http.Request) {
		zip := r.URL.Query().Get("zipCode")
		if r.URL.Query().Get("API_KEY") == "" {
			http.Error(w, "missing API_KEY", http.StatusUnauthorized)
			return
		}
		now := time.Now()
		writeJSON(w, []map[string]any{
			{
				"DateObserved": now.Format("2006-01-02"), "HourObserved": now.Hour(),
				"ReportingArea": "New York City - " + zip, "StateCode": "NY",
				"ParameterName": "O3", "AQI": 38, "Category": map[string]any{"Number": 1, "Name": "Good"},
			},
			{
				"DateObserved": now.Format("2006-01-02"), "HourObserved": now.Hour(),
				"ReportingArea": "New York City - " + zip, "StateCode": "NY",
				"ParameterName": "PM2.5", "AQI": 52 + len(zip)%7, "Category": map[string]any{"Number": 2, "Name": "Moderate"},
			},
		})
	})

	addr := ":8090"
	if v := os.Getenv("MOCK_OPENDATA_ADDR"); v != "" {
		addr = v
	}
	logger := log.New(log.Writer(), "opendata-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// covidDays returns a year of daily rows ending at now, oldest first.
func covidDays(now time.Time) []map[string]any {
	out := make([]map[string]any, 0, 365)
	start := now.AddDate(0, 0, -364)
	for i := 0; i < 365; i++ {
		day := start.AddDate(0, 0, i)
		wave := 400 + 250*((i/30)%4)
		out = append(out, map[string]any{
			"date_of_interest":   day.Format("2006-01-02T00:00:00.000"),
			"case_count":         wave + i%17,
			"hospitalized_count": wave/10 + i%5,
			"death_count":        wave/100 + i%3,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
