package mocks

//go:generate mockgen -destination=./mock_venue.go -package=mocks github.com/helios-quant/pairtrade/internal/venue Client
