package sentinel

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// Transform derives a new image from an existing one. Transforms only read raw
// bands, so they compose in any order.
type Transform func(*BandImage) (*BandImage, error)

// EVIExpression is the enhanced vegetation index over NIR, RED and BLUE reflectance.
const EVIExpression = "2.5 * ((NIR - RED) / (NIR + 6 * RED - 7.5 * BLUE + 1))"

func AddNDVI(img *BandImage) (*BandImage, error) {
	return NormalizedDifference(img, BandNIR, BandRed, IndexNDVI)
}

func AddNBR(img *BandImage) (*BandImage, error) {
	return NormalizedDifference(img, BandSWIR2, BandNIR, IndexNBR)
}

func AddNDWI(img *BandImage) (*BandImage, error) {
	return NormalizedDifference(img, BandNIR, BandGreen, IndexNDWI)
}

func AddEVI(img *BandImage) (*BandImage, error) {
	return AddExpression(img, IndexEVI, EVIExpression, map[string]string{
		"NIR":  BandNIR,
		"RED":  BandRed,
		"BLUE": BandBlue,
	})
}

// IndexTransforms are the four index transforms in chart order.
var IndexTransforms = []Transform{AddNDVI, AddNBR, AddNDWI, AddEVI}

// Chain applies transforms left to right.
func Chain(img *BandImage, transforms ...Transform) (*BandImage, error) {
	var err error
	for _, transform := range transforms {
		img, err = transform(img)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// NormalizedDifference adds (a-b)/(a+b) as band name. Pixels with a zero denominator
// or a NoData input are NoData.
func NormalizedDifference(img *BandImage, a, b, name string) (*BandImage, error) {
	bandA, err := img.Band(a)
	if err != nil {
		return nil, err
	}
	bandB, err := img.Band(b)
	if err != nil {
		return nil, err
	}
	return img.WithBand(name, calculateIndex(bandA, bandB))
}

func calculateIndex(band1, band2 []float64) []float64 {
	result := make([]float64, len(band1))
	for i := range result {
		if IsNoData(band1[i]) || IsNoData(band2[i]) {
			result[i] = NoData
			continue
		}
		denominator := band1[i] + band2[i]
		if denominator != 0 {
			result[i] = (band1[i] - band2[i]) / denominator
		} else {
			result[i] = NoData
		}
	}
	return result
}

// AddExpression evaluates expr for every pixel and adds the result as band name.
// vars maps expression variables to band names. Non-finite results are NoData.
func AddExpression(img *BandImage, name, expr string, vars map[string]string) (*BandImage, error) {
	expression, err := parseBandExpression(expr, vars)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string][]float64, len(vars))
	for variable, band := range vars {
		data, err := img.Band(band)
		if err != nil {
			return nil, err
		}
		inputs[variable] = data
	}

	result := make([]float64, img.Width*img.Height)
	parameters := make(map[string]interface{}, len(inputs))
	for i := range result {
		noData := false
		for variable, data := range inputs {
			if IsNoData(data[i]) {
				noData = true
				break
			}
			parameters[variable] = data[i]
		}
		if noData {
			result[i] = NoData
			continue
		}

		value, err := expression.Evaluate(parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s at pixel %d: %w", name, i, err)
		}
		v, ok := expressionValue(value)
		if !ok || IsNoData(v) {
			result[i] = NoData
			continue
		}
		result[i] = v
	}

	return img.WithBand(name, result)
}

// expressionValue converts an evaluation result to float64. The evaluator computes
// in float32, so results carry float32 precision.
func expressionValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case []float32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

func parseBandExpression(expr string, vars map[string]string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(expr)) == 0 {
		return nil, fmt.Errorf("empty band expression")
	}

	expression, err := goeval.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid band expression %q: %w", expr, err)
	}

	for _, token := range expression.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		varName, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
		}
		if _, found := vars[varName]; !found {
			return nil, fmt.Errorf("variable %s in %q is not bound to a band", varName, expr)
		}
	}
	return expression, nil
}
